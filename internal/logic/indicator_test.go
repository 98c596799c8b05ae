package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestIndicators() *Indicators {
	return NewIndicators(100, DefaultBlinkEvery, DefaultBeepEvery, DefaultBeepTicks)
}

func TestRunLEDAlwaysOn(t *testing.T) {
	ind := newTestIndicators()
	for _, mode := range []SystemMode{ModeOn, ModeStopped, ModeWorking, ModeFinished, ModeFinishedAwait} {
		assert.True(t, ind.Update(mode).RunLED, mode)
	}
}

func TestActivityLEDBlinksWhileWorking(t *testing.T) {
	ind := newTestIndicators()

	blinks := 0
	for i := 1; i <= 1000; i++ {
		out := ind.Update(ModeWorking)
		if out.ActivityLED {
			blinks++
			assert.Zero(t, i%100, "blink on tick %d", i)
		}
		assert.False(t, out.Buzzer)
	}
	assert.Equal(t, 10, blinks)
}

func TestActivityLEDOffWhenStopped(t *testing.T) {
	ind := newTestIndicators()
	for i := 0; i < 500; i++ {
		out := ind.Update(ModeStopped)
		assert.False(t, out.ActivityLED)
		assert.False(t, out.Buzzer)
	}
}

func TestActivityLEDSteadyWhenFinished(t *testing.T) {
	ind := newTestIndicators()
	assert.True(t, ind.Update(ModeFinished).ActivityLED)
	for i := 0; i < 50; i++ {
		assert.True(t, ind.Update(ModeFinishedAwait).ActivityLED)
	}
}

func TestBuzzerBeepsWhileAwaiting(t *testing.T) {
	ind := newTestIndicators()

	var on []int
	for i := 1; i <= 2100; i++ {
		if ind.Update(ModeFinishedAwait).Buzzer {
			on = append(on, i)
		}
	}

	assert.Len(t, on, 2*DefaultBeepTicks)
	assert.Equal(t, 1000, on[0])
	assert.Equal(t, 1009, on[DefaultBeepTicks-1])
	assert.Equal(t, 2000, on[DefaultBeepTicks])
}

func TestBuzzerSilencedOnModeChange(t *testing.T) {
	ind := newTestIndicators()
	for i := 0; i < 1002; i++ {
		ind.Update(ModeFinishedAwait)
	}
	assert.False(t, ind.Update(ModeWorking).Buzzer)
}
