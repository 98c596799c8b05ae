package sensor

import (
	"errors"
	"sync"
)

// FakeSource is a test double that returns scripted voltages.
type FakeSource struct {
	mu sync.Mutex

	// Samples contains scripted voltages. Each Read consumes the next one;
	// the last sample repeats once they run out.
	Samples []float32

	// ReadError, if set, will be returned by Read()
	ReadError error

	Closed bool
	index  int
}

// NewFakeSource creates a FakeSource with the given samples.
func NewFakeSource(samples []float32) *FakeSource {
	return &FakeSource{Samples: samples}
}

// Read returns the next scripted voltage.
func (f *FakeSource) Read() (float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the source closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
