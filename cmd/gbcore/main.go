package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
	"github.com/sirupsen/logrus"
	"github.com/thelolagemann/gbcore/internal/apu"
	"github.com/thelolagemann/gbcore/internal/gameboy"
	"github.com/thelolagemann/gbcore/internal/ppu"
	"github.com/thelolagemann/gbcore/internal/types"
	"github.com/thelolagemann/gbcore/pkg/log"
	"github.com/thelolagemann/gbcore/pkg/utils"
)

// wavDecimation brings the sound cycle rate down to 43690Hz.
const wavDecimation = 48

func main() {
	c, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	logger := log.New()
	if c.verbose {
		logger = log.NewWithLevel(logrus.DebugLevel)
	}

	if err := run(logger, os.Stdout, c); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("gbcore", flag.ContinueOnError)
	fs.StringVar(&c.state, "state", "", "The snapshot to load (.gbcs, optionally .gz, .zip or .7z)")
	fs.StringVar(&c.model, "model", "dmg", "The model to emulate. Can be dmg or cgb")
	fs.IntVar(&c.frames, "frames", 60, "The number of frames to run")
	fs.BoolVar(&c.demo, "demo", false, "Run the demo register program")
	fs.StringVar(&c.bmp, "bmp", "", "Write the last frame to this bitmap")
	fs.StringVar(&c.wav, "wav", "", "Write the sound output to this WAV file")
	fs.StringVar(&c.plot, "plot", "", "Plot the sound output to this image")
	fs.StringVar(&c.save, "save", "", "Write a snapshot to this file when done")
	fs.BoolVar(&c.compress, "compress", false, "Compress the saved snapshot")
	fs.BoolVar(&c.verbose, "v", false, "Log debug output")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		err := fmt.Errorf("unexpected argument %q", fs.Arg(0))
		fmt.Fprintln(fs.Output(), err)
		return config{}, err
	}
	if c.frames < 0 {
		err := fmt.Errorf("negative frame count %d", c.frames)
		fmt.Fprintln(fs.Output(), err)
		return config{}, err
	}
	return c, nil
}

type config struct {
	state, model         string
	frames               int
	demo                 bool
	bmp, wav, plot, save string
	compress, verbose    bool
}

func run(logger log.Logger, out io.Writer, c config) error {
	model := types.StringToModel(c.model)
	if model == types.Unset {
		return fmt.Errorf("unknown model %q", c.model)
	}

	fb := make([]uint32, ppu.ScreenWidth*ppu.ScreenHeight)
	samples := make([]int32, 4*gameboy.CyclesPerFrame)
	opts := []gameboy.Opt{
		gameboy.AsModel(model),
		gameboy.WithLogger(logger),
		gameboy.WithFramebuffer(fb, ppu.ScreenWidth),
		gameboy.WithSampleBuffer(samples),
	}
	if c.demo {
		opts = append(opts, gameboy.WithCPU(gameboy.NewScript(gameboy.DemoSteps()...)))
	}
	if c.compress {
		opts = append(opts, gameboy.WithCompression())
	}
	gb := gameboy.New(opts...)

	if c.state != "" {
		data, err := utils.LoadFile(c.state)
		if err != nil {
			return fmt.Errorf("loading %s: %w", c.state, err)
		}
		if err := gb.LoadState(data); err != nil {
			return fmt.Errorf("loading %s: %w", c.state, err)
		}
		logger.Infof("loaded %s", c.state)
	}

	var output []int32
	keep := c.wav != "" || c.plot != ""
	for i := 0; i < c.frames; i++ {
		cycles := gb.RunFrame()
		buf, n := gb.FillSamples()
		fmt.Fprintf(out, "frame %d: %d cycles, picture %016x, %d samples %016x\n", i, cycles, digest(fb), n, digest(buf[:2*n]))
		if keep {
			output = append(output, buf[:2*n]...)
		}
	}

	if c.bmp != "" {
		img := utils.FramebufferImage(fb, ppu.ScreenWidth, ppu.ScreenWidth, ppu.ScreenHeight)
		if err := utils.SaveBMP(c.bmp, img); err != nil {
			return err
		}
		logger.Infof("wrote %s", c.bmp)
	}
	if keep {
		output = utils.Downsample(output, wavDecimation)
	}
	if c.wav != "" {
		if err := utils.SaveWAV(c.wav, output, apu.SampleRate/wavDecimation); err != nil {
			return err
		}
		logger.Infof("wrote %s", c.wav)
	}
	if c.plot != "" {
		if err := utils.PlotSamples(c.plot, output, apu.SampleRate/wavDecimation); err != nil {
			return err
		}
		logger.Infof("wrote %s", c.plot)
	}
	if c.save != "" {
		state, err := gb.SaveState()
		if err != nil {
			return err
		}
		if err := os.WriteFile(c.save, state, 0o644); err != nil {
			return err
		}
		logger.Infof("wrote %s", c.save)
	}
	return nil
}

func digest[T uint32 | int32](v []T) uint64 {
	b := make([]byte, 0, 4*len(v))
	for _, x := range v {
		b = binary.LittleEndian.AppendUint32(b, uint32(x))
	}
	return xxhash.Sum64(b)
}
