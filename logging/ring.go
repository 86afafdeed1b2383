package logging

import (
	"bytes"
	"sync"
)

// DefaultRingSize is the number of lines kept for the log panel
const DefaultRingSize = 100

// Ring is an io.Writer that keeps the last lines written to it
type Ring struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial []byte
}

// NewRing returns a Ring holding at most max lines
func NewRing(max int) *Ring {
	if max <= 0 {
		max = DefaultRingSize
	}
	return &Ring{max: max}
}

func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := append(r.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		r.lines = append(r.lines, string(data[:i]))
		data = data[i+1:]
	}
	r.partial = append([]byte(nil), data...)

	if len(r.lines) > r.max {
		r.lines = r.lines[len(r.lines)-r.max:]
	}
	return len(p), nil
}

// Lines returns a copy of the retained lines, oldest first
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len returns the number of retained lines
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
