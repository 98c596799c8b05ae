// Package gpio provides keypad input and actuator output with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/filament-dryer/internal/logic"

// ButtonReader samples the four keypad buttons.
type ButtonReader interface {
	// Read returns the raw (undebounced) button levels; true = pressed.
	Read() (logic.ButtonReading, error)

	// Close releases GPIO resources.
	Close() error
}

// OutputWriter drives the heater relay, the panel LEDs and the buzzer.
type OutputWriter interface {
	// Write sets every actuator line from out.
	Write(out logic.Output) error

	// Close turns every actuator off and releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// Pins holds line offsets (BCM numbering).
type Pins struct {
	RunStop int
	Mode    int
	Plus    int
	Minus   int

	Heater      int
	ActivityLED int
	RunLED      int
	Buzzer      int
}

// DefaultPins is the reference wiring.
var DefaultPins = Pins{
	RunStop: 17,
	Mode:    27,
	Plus:    22,
	Minus:   23,

	Heater:      24,
	ActivityLED: 25,
	RunLED:      5,
	Buzzer:      6,
}

// Inputs returns the button offsets in ButtonReading field order.
func (p Pins) Inputs() []int {
	return []int{p.RunStop, p.Mode, p.Plus, p.Minus}
}

// Outputs returns the actuator offsets in Output field order.
func (p Pins) Outputs() []int {
	return []int{p.Heater, p.ActivityLED, p.RunLED, p.Buzzer}
}

// readingFromValues maps line values (Inputs order) to a ButtonReading.
func readingFromValues(v []int) logic.ButtonReading {
	return logic.ButtonReading{
		RunStop: v[0] != 0,
		Mode:    v[1] != 0,
		Plus:    v[2] != 0,
		Minus:   v[3] != 0,
	}
}

// valuesFromOutput maps an Output to line values (Outputs order).
func valuesFromOutput(out logic.Output) []int {
	return []int{b2i(out.Heater), b2i(out.ActivityLED), b2i(out.RunLED), b2i(out.Buzzer)}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
