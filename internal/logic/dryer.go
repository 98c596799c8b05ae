package logic

import "time"

// Params configures the timing and control constants of the core.
type Params struct {
	TickPeriod    time.Duration
	Debounce      time.Duration
	FilterSamples int
	Hysteresis    int
	OverTemp      int
	BlinkEvery    int // seconds
	BeepEvery     int // seconds
	BeepTicks     int
}

// DefaultParams returns the reference appliance constants.
func DefaultParams() Params {
	return Params{
		TickPeriod:    DefaultTickPeriod,
		Debounce:      DefaultDebounce,
		FilterSamples: DefaultFilterSamples,
		Hysteresis:    DefaultHysteresis,
		OverTemp:      DefaultOverTemp,
		BlinkEvery:    DefaultBlinkEvery,
		BeepEvery:     DefaultBeepEvery,
		BeepTicks:     DefaultBeepTicks,
	}
}

// TicksPerSecond returns how many ticks make up one second.
func (p Params) TicksPerSecond() int {
	if p.TickPeriod <= 0 {
		return 1
	}
	return max(int(time.Second/p.TickPeriod), 1)
}

// Dryer is the drying lifecycle state machine. It owns every core component
// and advances all of them once per Update.
type Dryer struct {
	clock      *Clock
	filter     *TemperatureFilter
	keypad     *Debouncer
	dispatcher *Dispatcher
	heater     *HeaterController
	indicators *Indicators

	settings     Settings
	output       Output
	counts       Counts
	powered      bool
	lastProgress Elapsed

	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDryer creates a dryer in ModeOn with minimum setpoints.
// The startTime is used for calculating uptime in heartbeat events.
func NewDryer(p Params, startTime time.Time) *Dryer {
	return &Dryer{
		clock:      NewClock(p.TicksPerSecond()),
		filter:     NewTemperatureFilter(p.FilterSamples, LM35DegreesPerVolt),
		keypad:     NewDebouncer(p.TickPeriod, p.Debounce),
		dispatcher: NewDispatcher(),
		heater:     NewHeaterController(p.Hysteresis, p.OverTemp),
		indicators: NewIndicators(p.TicksPerSecond(), p.BlinkEvery, p.BeepEvery, p.BeepTicks),
		settings: Settings{
			Mode:   ModeOn,
			Adjust: AdjustTime,
			Config: DefaultDryerConfig(),
		},
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Update runs one tick: keypad, dispatcher, lifecycle, heater, filter,
// indicators and clock, in that order. It returns the events produced.
func (d *Dryer) Update(in Input) []Event {
	var events []Event
	emit := func(t EventType) {
		events = append(events, d.event(t, in.Time))
	}

	if !d.powered {
		d.powered = true
		emit(EventPowerOn)
	}

	d.keypad.Update(in.Buttons.Resolve())

	before := d.settings
	switch d.dispatcher.Dispatch(d.keypad.Button(), &d.settings) {
	case ActionStart:
		d.enter(ModeWorking)
		d.counts.Started++
		emit(EventStarted)
	case ActionStop:
		d.enter(ModeStopped)
		d.counts.Aborted++
		emit(EventStopped)
	case ActionToggle:
		emit(EventAdjustMode)
	case ActionIncrease, ActionDecrease:
		if d.settings.Config != before.Config {
			emit(EventSetpoint)
		}
	}

	switch d.settings.Mode {
	case ModeOn:
		d.enter(ModeStopped)
	case ModeStopped, ModeFinishedAwait:
		d.clock.Reset()
	case ModeWorking:
		if d.clock.Read().Hours >= d.settings.Config.ActivityTimeHours {
			d.enter(ModeFinished)
			d.counts.Completed++
			emit(EventFinished)
		}
	case ModeFinished:
		d.enter(ModeFinishedAwait)
	}

	var heater bool
	if in.SensorFault {
		heater = d.heater.Inhibit()
	} else {
		heater = d.heater.Update(d.settings.Mode, d.filter.Celsius(), d.settings.Config.WorkTemperatureC)
		if d.heater.Tripped() {
			d.counts.OverTemp++
			emit(EventOverTemp)
		}
		d.filter.Push(in.Volts)
	}

	d.output = d.indicators.Update(d.settings.Mode)
	d.output.Heater = heater

	d.clock.Tick()

	if d.settings.Mode == ModeWorking && d.clock.Read() != d.lastProgress {
		d.lastProgress = d.clock.Read()
		emit(EventProgress)
	}

	return events
}

// enter switches the lifecycle mode and runs its entry actions.
func (d *Dryer) enter(mode SystemMode) {
	d.settings.Mode = mode
	switch mode {
	case ModeStopped:
		d.settings.Config = DefaultDryerConfig()
		d.settings.Adjust = AdjustTime
		d.clock.Reset()
	case ModeWorking:
		d.clock.Reset()
		d.lastProgress = Elapsed{}
	case ModeFinished:
		d.clock.Reset()
	case ModeFinishedAwait:
		d.settings.Adjust = AdjustTime
		d.clock.Reset()
	}
}

func (d *Dryer) event(t EventType, ts time.Time) Event {
	return Event{
		Timestamp: ts,
		Type:      t,
		Mode:      d.settings.Mode,
		Adjust:    d.settings.Adjust,
		Config:    d.settings.Config,
		Elapsed:   d.clock.Read(),
		Celsius:   d.filter.Celsius(),
		Heater:    d.heater.On(),
	}
}

// Mode returns the lifecycle mode.
func (d *Dryer) Mode() SystemMode { return d.settings.Mode }

// Adjust returns which setpoint the +/- buttons edit.
func (d *Dryer) Adjust() AdjustMode { return d.settings.Adjust }

// Config returns the current setpoints.
func (d *Dryer) Config() DryerConfig { return d.settings.Config }

// Elapsed returns the clock reading.
func (d *Dryer) Elapsed() Elapsed { return d.clock.Read() }

// Celsius returns the filtered temperature.
func (d *Dryer) Celsius() int { return d.filter.Celsius() }

// Output returns the actuator state decided by the last Update.
func (d *Dryer) Output() Output { return d.output }

// Button returns the latched, debounced button.
func (d *Dryer) Button() Button { return d.keypad.Button() }

// Counts returns lifecycle totals since power-on.
func (d *Dryer) Counts() Counts { return d.counts }

// Snapshot returns every value the adapters render.
func (d *Dryer) Snapshot() Snapshot {
	return Snapshot{
		Mode:    d.settings.Mode,
		Adjust:  d.settings.Adjust,
		Config:  d.settings.Config,
		Elapsed: d.clock.Read(),
		Celsius: d.filter.Celsius(),
		Button:  d.keypad.Button(),
		Output:  d.output,
		Counts:  d.counts,
	}
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the dryer has not run a tick yet,
// if the interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Dryer) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if !d.powered {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}
	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
