package scheduler

// EventID tags a coarse event of the machine. The declaration order is the
// execution order of events due in the same cycle.
type EventID uint8

const (
	// Unhalt resumes the CPU after a speed switch.
	Unhalt EventID = iota
	// End marks the end of the current run quantum.
	End
	// Blit marks a finished frame.
	Blit
	// Serial completes a serial transfer.
	Serial
	// OAM advances or completes an OAM DMA transfer.
	OAM
	// DMA performs a pending HDMA or GDMA transfer.
	DMA
	// Timer reloads TIMA after an overflow.
	Timer
	// Video services the video timing core.
	Video
	// Interrupts dispatches a pending interrupt or wakes a halted CPU.
	Interrupts

	eventIDs
)

// EventIDs is the number of coarse event tags.
const EventIDs = int(eventIDs)

var eventNames = [...]string{
	Unhalt:     "unhalt",
	End:        "end",
	Blit:       "blit",
	Serial:     "serial",
	OAM:        "oam",
	DMA:        "dma",
	Timer:      "timer",
	Video:      "video",
	Interrupts: "interrupts",
}

func (e EventID) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}
