package logic

import "time"

// Debouncer turns bouncing per-tick button samples into one stable button.
//
// Only one button is latched at a time: once a press is latched in Down, other
// buttons are ignored until everything has been released for the debounce
// threshold. Simultaneous presses are therefore resolved by ButtonReading.Resolve
// priority, never combined into a gesture.
type Debouncer struct {
	period    time.Duration
	threshold time.Duration

	state   DebounceState
	held    time.Duration
	latched Button
}

// NewDebouncer creates a debouncer for the given tick period and threshold.
func NewDebouncer(period, threshold time.Duration) *Debouncer {
	return &Debouncer{
		period:    period,
		threshold: threshold,
		state:     DebounceUp,
		latched:   ButtonNone,
	}
}

// Update advances the FSM with one raw sample. Call once per tick.
func (d *Debouncer) Update(raw Button) {
	pressed := raw != ButtonNone

	switch d.state {
	case DebounceUp:
		if pressed {
			d.state = DebounceFalling
			d.held = 0
			return
		}
		d.latched = ButtonNone

	case DebounceFalling:
		if !pressed {
			// glitch
			d.state = DebounceUp
			d.held = 0
			return
		}
		d.held += d.period
		if d.held >= d.threshold {
			d.state = DebounceDown
			d.held = 0
			if d.latched == ButtonNone {
				d.latched = raw
			}
		}

	case DebounceDown:
		if !pressed {
			d.state = DebounceRising
			d.held = 0
			return
		}
		if d.latched == ButtonNone {
			d.latched = raw
		}

	case DebounceRising:
		if pressed {
			// bounce on release, keep the latched button
			d.state = DebounceDown
			d.held = 0
			return
		}
		d.held += d.period
		if d.held >= d.threshold {
			d.state = DebounceUp
			d.held = 0
			d.latched = ButtonNone
		}
	}
}

// Button returns the currently latched, debounced button.
func (d *Debouncer) Button() Button {
	return d.latched
}

// State returns the FSM state.
func (d *Debouncer) State() DebounceState {
	return d.state
}
