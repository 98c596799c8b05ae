package gpio

import (
	"errors"

	"github.com/sweeney/filament-dryer/internal/logic"
)

// FakeReader is a test double that returns scripted button readings.
type FakeReader struct {
	// Samples contains scripted readings to return.
	// Each call to Read() consumes the next sample.
	Samples []logic.ButtonReading

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []logic.ButtonReading) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (logic.ButtonReading, error) {
	if f.ReadError != nil {
		return logic.ButtonReading{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return logic.ButtonReading{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeWriter records every Output written to it.
type FakeWriter struct {
	Writes     []logic.Output
	Closed     bool
	WriteError error
}

// NewFakeWriter creates an empty FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Write records out, or returns WriteError if set.
func (f *FakeWriter) Write(out logic.Output) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, out)
	return nil
}

// Last returns the most recent Output, or the zero Output if nothing was written.
func (f *FakeWriter) Last() logic.Output {
	if len(f.Writes) == 0 {
		return logic.Output{}
	}
	return f.Writes[len(f.Writes)-1]
}

// Close marks the writer closed and records an all-off Output, like the real writer.
func (f *FakeWriter) Close() error {
	f.Closed = true
	f.Writes = append(f.Writes, logic.Output{})
	return nil
}
