package mpc

// History is a fixed capacity FIFO of the most recent steering commands.
// It seeds the dead time portion of the prediction horizon.
type History struct {
	buf []float64
}

// NewHistory creates a zero filled History holding max(1, delay) commands
func NewHistory(delay int) *History {
	if delay < 1 {
		delay = 1
	}

	return &History{buf: make([]float64, delay)}
}

// Push appends v and drops the oldest command
func (h *History) Push(v float64) {
	copy(h.buf, h.buf[1:])
	h.buf[len(h.buf)-1] = v
}

// Values returns a copy of the stored commands, oldest first
func (h *History) Values() []float64 {
	out := make([]float64, len(h.buf))
	copy(out, h.buf)

	return out
}

// Len returns the history capacity
func (h *History) Len() int {
	return len(h.buf)
}
