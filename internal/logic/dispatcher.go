package logic

// Action is what the dispatcher did with a button edge.
type Action string

const (
	ActionNone     Action = ""
	ActionStart    Action = "START"
	ActionStop     Action = "STOP"
	ActionToggle   Action = "TOGGLE_ADJUST"
	ActionIncrease Action = "INCREASE"
	ActionDecrease Action = "DECREASE"
)

// Settings is the user-facing state the dispatcher edits.
// The lifecycle owns Mode; the dispatcher only requests Start/Stop.
type Settings struct {
	Mode   SystemMode
	Adjust AdjustMode
	Config DryerConfig
}

// Dispatcher acts once per physical press of a debounced button.
// Holding a button does not repeat the action: it must be released
// (the debouncer reporting ButtonNone) and pressed again.
type Dispatcher struct {
	previous Button
}

// NewDispatcher creates a dispatcher with no press in progress.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{previous: ButtonNone}
}

// Dispatch consumes this tick's debounced button. On a new edge it toggles the
// adjust mode or edits the selected setpoint in s, or returns ActionStart/ActionStop
// for the lifecycle to apply.
func (d *Dispatcher) Dispatch(b Button, s *Settings) Action {
	if b == d.previous {
		return ActionNone
	}
	d.previous = b

	switch b {
	case ButtonRunStop:
		switch s.Mode {
		case ModeWorking:
			return ActionStop
		case ModeStopped, ModeFinishedAwait:
			return ActionStart
		}
		// On and Finished ignore run/stop.
		return ActionNone

	case ButtonMode:
		if s.Adjust == AdjustTime {
			s.Adjust = AdjustTemperature
		} else {
			s.Adjust = AdjustTime
		}
		return ActionToggle

	case ButtonPlus:
		if s.Mode != ModeWorking {
			return ActionNone
		}
		adjustSetpoint(s, +1)
		return ActionIncrease

	case ButtonMinus:
		if s.Mode != ModeWorking {
			return ActionNone
		}
		adjustSetpoint(s, -1)
		return ActionDecrease
	}

	// ButtonNone: the release makes the next press a new edge.
	d.previous = ButtonNone
	return ActionNone
}

func adjustSetpoint(s *Settings, sign int) {
	switch s.Adjust {
	case AdjustTemperature:
		s.Config.WorkTemperatureC = clamp(s.Config.WorkTemperatureC+sign*IncrementTemp, MinTemp, MaxTemp)
	default:
		s.Config.ActivityTimeHours = clamp(s.Config.ActivityTimeHours+sign*IncrementTime, MinTime, MaxTime)
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
