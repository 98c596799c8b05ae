// Package logic contains the control core of the filament dryer.
// This package has NO hardware dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Everything advances one fixed-period tick at a time through Dryer.Update;
// wall-clock time is only passed in to stamp events and drive heartbeats.
package logic

import (
	"fmt"
	"time"
)

// Appliance limits and steps for the user setpoints.
const (
	MinTime       = 1  // hours
	MaxTime       = 24 // hours
	IncrementTime = 1

	MinTemp       = 30 // °C
	MaxTemp       = 90 // °C
	IncrementTemp = 5
)

// Reference timing and control constants.
const (
	DefaultTickPeriod    = 10 * time.Millisecond
	DefaultDebounce      = 30 * time.Millisecond
	DefaultFilterSamples = 100
	DefaultHysteresis    = 5   // °C below target before the heater turns back on
	DefaultOverTemp      = 100 // °C, heater is forced off at or above this
	DefaultBeepEvery     = 10  // seconds between beeps while awaiting acknowledgment
	DefaultBeepTicks     = 10
	DefaultBlinkEvery    = 1 // seconds between activity LED blinks while working

	// LM35DegreesPerVolt is the LM35 scale: 10 mV per °C.
	LM35DegreesPerVolt = 100
	FullScaleVolts     = 3.3
)

// SystemMode is the lifecycle state of the appliance.
type SystemMode string

const (
	ModeOn            SystemMode = "ON"
	ModeStopped       SystemMode = "STOPPED"
	ModeWorking       SystemMode = "WORKING"
	ModeFinished      SystemMode = "FINISHED"
	ModeFinishedAwait SystemMode = "FINISHED_AWAIT"
)

// AdjustMode selects which setpoint the +/- buttons edit.
type AdjustMode string

const (
	AdjustTime        AdjustMode = "TIME"
	AdjustTemperature AdjustMode = "TEMPERATURE"
)

// Button is a single resolved keypress.
type Button string

const (
	ButtonNone    Button = "NONE"
	ButtonRunStop Button = "RUN_STOP"
	ButtonMode    Button = "MODE"
	ButtonPlus    Button = "PLUS"
	ButtonMinus   Button = "MINUS"
)

// DebounceState is the state of the keypad debounce FSM.
type DebounceState string

const (
	DebounceUp      DebounceState = "UP"
	DebounceFalling DebounceState = "FALLING"
	DebounceDown    DebounceState = "DOWN"
	DebounceRising  DebounceState = "RISING"
)

// ButtonReading is one raw sample of the four button pins (true = pressed).
type ButtonReading struct {
	RunStop bool
	Mode    bool
	Plus    bool
	Minus   bool
}

// Resolve maps a raw sample to at most one button.
// Priority: Mode > Plus > Minus > RunStop.
func (r ButtonReading) Resolve() Button {
	switch {
	case r.Mode:
		return ButtonMode
	case r.Plus:
		return ButtonPlus
	case r.Minus:
		return ButtonMinus
	case r.RunStop:
		return ButtonRunStop
	}
	return ButtonNone
}

// DryerConfig holds the user-chosen drying parameters.
type DryerConfig struct {
	ActivityTimeHours int
	WorkTemperatureC  int
}

// DefaultDryerConfig returns the minimum setpoints.
func DefaultDryerConfig() DryerConfig {
	return DryerConfig{ActivityTimeHours: MinTime, WorkTemperatureC: MinTemp}
}

// Elapsed is a snapshot of the software clock.
type Elapsed struct {
	Hours   int
	Minutes int
	Seconds int
}

// Duration converts the snapshot to a time.Duration.
func (e Elapsed) Duration() time.Duration {
	return time.Duration(e.Hours)*time.Hour +
		time.Duration(e.Minutes)*time.Minute +
		time.Duration(e.Seconds)*time.Second
}

func (e Elapsed) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", e.Hours, e.Minutes, e.Seconds)
}

// Output is the actuator state decided by the core for one tick.
type Output struct {
	Heater      bool
	ActivityLED bool
	RunLED      bool
	Buzzer      bool
}

// Input is a single tick's worth of raw samples.
type Input struct {
	Buttons ButtonReading
	Volts   float32 // sensor voltage, 0.0 to 3.3
	Time    time.Time

	// SensorFault marks Volts as unusable: the heater is held off and the
	// filter is not fed until a fresh sample arrives.
	SensorFault bool
}

// EventType identifies what happened during a tick.
type EventType string

const (
	EventPowerOn    EventType = "POWER_ON"
	EventStarted    EventType = "STARTED"
	EventStopped    EventType = "STOPPED"
	EventFinished   EventType = "FINISHED"
	EventAdjustMode EventType = "ADJUST_MODE"
	EventSetpoint   EventType = "SETPOINT"
	EventOverTemp   EventType = "OVERTEMP"
	EventProgress   EventType = "PROGRESS"
)

// Event reports a state change (or a progress tick) to the adapter layer.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      SystemMode
	Adjust    AdjustMode
	Config    DryerConfig
	Elapsed   Elapsed
	Celsius   int
	Heater    bool
}

// Counts tracks lifecycle totals since power-on.
type Counts struct {
	Started   int
	Completed int
	Aborted   int
	OverTemp  int
}

// Snapshot is a read-only view of everything the adapters render.
type Snapshot struct {
	Mode    SystemMode
	Adjust  AdjustMode
	Config  DryerConfig
	Elapsed Elapsed
	Celsius int
	Button  Button
	Output  Output
	Counts  Counts
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
