//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/filament-dryer/internal/logic"
)

// RealReader reads the keypad from actual hardware using Linux GPIO character device.
type RealReader struct {
	lines  *gpiocdev.Lines
	values []int
}

// NewRealReader requests the four button lines on chip.
func NewRealReader(chip string, pins Pins) (*RealReader, error) {
	// Buttons pull the line high when pressed; pull-down keeps released
	// buttons at 0 and matches Pi boot defaults.
	lines, err := gpiocdev.RequestLines(chip, pins.Inputs(), gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request button lines %v on %s: %w", pins.Inputs(), chip, err)
	}
	return &RealReader{lines: lines, values: make([]int, len(pins.Inputs()))}, nil
}

// Read returns the raw button levels.
func (r *RealReader) Read() (logic.ButtonReading, error) {
	if err := r.lines.Values(r.values); err != nil {
		return logic.ButtonReading{}, fmt.Errorf("read button lines: %w", err)
	}
	return readingFromValues(r.values), nil
}

// Close releases the button lines.
func (r *RealReader) Close() error {
	if r.lines == nil {
		return nil
	}
	if err := r.lines.Close(); err != nil {
		return fmt.Errorf("close button lines: %w", err)
	}
	return nil
}

// RealWriter drives the actuators on actual hardware.
type RealWriter struct {
	lines *gpiocdev.Lines
}

// NewRealWriter requests the actuator lines as outputs, all initially off.
func NewRealWriter(chip string, pins Pins) (*RealWriter, error) {
	offsets := pins.Outputs()
	lines, err := gpiocdev.RequestLines(chip, offsets, gpiocdev.AsOutput(make([]int, len(offsets))...))
	if err != nil {
		return nil, fmt.Errorf("request output lines %v on %s: %w", offsets, chip, err)
	}
	return &RealWriter{lines: lines}, nil
}

// Write sets the heater, LEDs and buzzer.
func (w *RealWriter) Write(out logic.Output) error {
	if err := w.lines.SetValues(valuesFromOutput(out)); err != nil {
		return fmt.Errorf("set output lines: %w", err)
	}
	return nil
}

// Close drives everything low, then reconfigures the lines to input with
// pull-down (Pi boot defaults) so the heater relay cannot stay energised
// across a restart.
func (w *RealWriter) Close() error {
	if w.lines == nil {
		return nil
	}

	var errs []error
	if err := w.lines.SetValues(valuesFromOutput(logic.Output{})); err != nil {
		errs = append(errs, fmt.Errorf("clear outputs: %w", err))
	}
	if err := w.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure outputs: %w", err))
	}
	if err := w.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close outputs: %w", err))
	}
	return errors.Join(errs...)
}
