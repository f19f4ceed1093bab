package utils

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// LoadFile loads the given file and performs decompression if the extension
// names a supported archive (.gz, .zip, .7z). For archives holding several
// files the first one is returned.
func LoadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return Decompress(filepath.Ext(filename), data)
}

// Decompress unpacks data according to the archive extension ext. Unknown
// extensions return the data as is.
func Decompress(ext string, data []byte) ([]byte, error) {
	var decoder io.ReadCloser
	var err error

	switch strings.ToLower(ext) {
	case ".gz":
		decoder, err = gzip.NewReader(bytes.NewReader(data))
	case ".zip":
		zipReader, zerr := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if zerr != nil {
			return nil, fmt.Errorf("utils: opening zip: %w", zerr)
		}
		if len(zipReader.File) == 0 {
			return nil, fmt.Errorf("utils: empty zip archive")
		}
		decoder, err = zipReader.File[0].Open()
	case ".7z":
		r, serr := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if serr != nil {
			return nil, fmt.Errorf("utils: opening 7z: %w", serr)
		}
		if len(r.File) == 0 {
			return nil, fmt.Errorf("utils: empty 7z archive")
		}
		decoder, err = r.File[0].Open()
	default:
		return data, nil
	}

	if err != nil {
		return nil, fmt.Errorf("utils: decompressing %s: %w", ext, err)
	}
	defer decoder.Close()

	return io.ReadAll(decoder)
}
