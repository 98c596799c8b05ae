package logic

// HeaterController is a bang-bang controller with a turn-on margin and an
// over-temperature cutoff.
type HeaterController struct {
	margin   int
	overTemp int
	on       bool
	tripped  bool
}

// NewHeaterController creates a controller that turns on below target-margin
// and is forced off at or above overTemp.
func NewHeaterController(margin, overTemp int) *HeaterController {
	return &HeaterController{margin: margin, overTemp: overTemp}
}

// Update evaluates one tick and returns the heater state.
// Outside ModeWorking the heater is always off.
func (h *HeaterController) Update(mode SystemMode, current, target int) bool {
	h.tripped = false

	switch {
	case mode != ModeWorking:
		h.on = false
	case current >= h.overTemp:
		h.tripped = h.on
		h.on = false
	case current >= target:
		h.on = false
	case !h.on:
		h.on = current < target-h.margin
	}
	return h.on
}

// Inhibit forces the heater off without counting an over-temperature trip.
func (h *HeaterController) Inhibit() bool {
	h.on = false
	h.tripped = false
	return h.on
}

// On returns the last decided heater state.
func (h *HeaterController) On() bool {
	return h.on
}

// Tripped reports whether the last Update forced a running heater off
// because of over-temperature.
func (h *HeaterController) Tripped() bool {
	return h.tripped
}
