package serial

// Device is a device that can be attached to the Controller. For every bit
// shifted out by the Controller, Send is asked for the incoming bit and
// Receive is handed the outgoing one.
type Device interface {
	Receive(bool)
	Send() bool
}

// nullDevice is an implementation of Device that
// simply returns true on Send and does nothing on
// Receive. This is most commonly used for when no
// device is attached to the Controller.
type nullDevice struct{}

// Receive does nothing.
func (n nullDevice) Receive(bool) {}

// Send always returns true.
func (n nullDevice) Send() bool { return true }

// Recorder is a Device that collects the bytes sent by the Controller and
// answers every bit with the bits of Reply, starting with bit 7.
type Recorder struct {
	Reply byte
	Bytes []byte

	out  byte
	bits int
	in   int
}

// Receive shifts b into the byte being recorded.
func (r *Recorder) Receive(b bool) {
	r.out <<= 1
	if b {
		r.out |= 1
	}
	r.bits++
	if r.bits == 8 {
		r.Bytes = append(r.Bytes, r.out)
		r.out, r.bits = 0, 0
	}
}

// Send returns the next bit of Reply.
func (r *Recorder) Send() bool {
	b := r.Reply&(0x80>>uint(r.in)) != 0
	r.in = (r.in + 1) & 7
	return b
}
