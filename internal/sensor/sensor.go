// Package sensor provides the analog temperature sample behind the dryer's
// moving-average filter. Hardware is polled in the background so Read never
// blocks the control tick.
package sensor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source returns the most recent sensor voltage (0.0 to full scale).
// Read fails with ErrNoSample before the first sample and ErrStale once
// samples stop arriving.
type Source interface {
	Read() (float32, error)
	Close() error
}

// Kind selects a Source implementation.
type Kind string

const (
	KindSerial Kind = "serial"
	KindModbus Kind = "modbus"
	KindFake   Kind = "fake"
)

var (
	// ErrNoSample is returned until the first sample has arrived.
	ErrNoSample = errors.New("sensor: no sample yet")

	// ErrStale is returned when the background reader has stopped delivering
	// samples. The last voltage is returned alongside it for logging only.
	ErrStale = errors.New("sensor: sample is stale")
)

// Options configures Open.
type Options struct {
	Kind Kind

	// serial
	Port string
	Baud int

	// modbus
	ModbusURL      string
	ModbusUnit     uint8
	ModbusRegister uint16
	Poll           time.Duration

	// ADC scaling shared by serial and modbus
	ADCBits int
	VRef    float32

	// fake
	FakeVolts float32
}

// Open creates and starts the Source selected by opts.Kind.
func Open(opts Options, logger *zap.Logger) (Source, error) {
	switch opts.Kind {
	case KindSerial:
		s := NewSerialSource(opts.Port, opts.Baud, opts.ADCBits, opts.VRef, logger)
		if err := s.Open(); err != nil {
			return nil, err
		}
		return s, nil
	case KindModbus:
		m, err := NewModbusSource(opts.ModbusURL, opts.ModbusUnit, opts.ModbusRegister, opts.Poll, opts.ADCBits, opts.VRef, logger)
		if err != nil {
			return nil, err
		}
		if err := m.Open(); err != nil {
			return nil, err
		}
		return m, nil
	case KindFake:
		return NewFakeSource([]float32{opts.FakeVolts}), nil
	}
	return nil, fmt.Errorf("unknown sensor kind %q", opts.Kind)
}

// CountsToVolts scales a raw ADC reading to volts, clamped to vref.
func CountsToVolts(counts uint16, bits int, vref float32) float32 {
	full := maxCounts(bits)
	if uint32(counts) >= full {
		return vref
	}
	return float32(counts) / float32(full) * vref
}

func maxCounts(bits int) uint32 {
	if bits <= 0 || bits > 16 {
		bits = 16
	}
	return 1<<uint(bits) - 1
}

// latest holds the last good sample written by a background reader.
// A sample older than maxAge, or any sample once the reader has exited,
// is reported as ErrStale.
type latest struct {
	mu      sync.RWMutex
	volts   float32
	ok      bool
	at      time.Time
	stopped bool
	maxAge  time.Duration
	now     func() time.Time
}

func (l *latest) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

func (l *latest) store(v float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.volts = v
	l.ok = true
	l.at = l.clock()
}

// stop records that no further samples will arrive.
func (l *latest) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
}

func (l *latest) load() (float32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch {
	case !l.ok:
		return 0, ErrNoSample
	case l.stopped:
		return l.volts, fmt.Errorf("%w: reader stopped", ErrStale)
	case l.maxAge > 0:
		if age := l.clock().Sub(l.at); age > l.maxAge {
			return l.volts, fmt.Errorf("%w: last sample %s old", ErrStale, age.Round(time.Millisecond))
		}
	}
	return l.volts, nil
}
