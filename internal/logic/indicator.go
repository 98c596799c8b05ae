package logic

// Indicators decides the panel LEDs and the buzzer from the lifecycle mode.
// All timing is counted in ticks.
type Indicators struct {
	blinkTicks int
	beepTicks  int
	beepLength int

	mode       SystemMode
	count      int
	buzzerLeft int
	out        Output
}

// NewIndicators creates the indicator timing. blinkEvery and beepEvery are in
// seconds; beepLength is the number of ticks the buzzer sounds per beep.
func NewIndicators(ticksPerSecond, blinkEvery, beepEvery, beepLength int) *Indicators {
	return &Indicators{
		blinkTicks: max(blinkEvery*ticksPerSecond, 1),
		beepTicks:  max(beepEvery*ticksPerSecond, 1),
		beepLength: max(beepLength, 1),
	}
}

// Update returns the LED and buzzer state for this tick. Heater is left false.
func (ind *Indicators) Update(mode SystemMode) Output {
	if mode != ind.mode {
		ind.mode = mode
		ind.count = 0
		ind.buzzerLeft = 0
	}

	ind.out = Output{RunLED: true}

	switch mode {
	case ModeWorking:
		ind.count++
		if ind.count >= ind.blinkTicks {
			ind.count = 0
			ind.out.ActivityLED = true
		}

	case ModeFinished:
		ind.out.ActivityLED = true

	case ModeFinishedAwait:
		ind.out.ActivityLED = true
		ind.count++
		if ind.count >= ind.beepTicks {
			ind.count = 0
			ind.buzzerLeft = ind.beepLength
		}
		if ind.buzzerLeft > 0 {
			ind.buzzerLeft--
			ind.out.Buzzer = true
		}
	}

	return ind.out
}
