package logic

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func working() *Settings {
	return &Settings{Mode: ModeWorking, Adjust: AdjustTime, Config: DefaultDryerConfig()}
}

func TestDispatchActsOncePerEdge(t *testing.T) {
	d := NewDispatcher()
	s := working()

	assert.Equal(t, ActionIncrease, d.Dispatch(ButtonPlus, s))
	for i := 0; i < 50; i++ {
		assert.Equal(t, ActionNone, d.Dispatch(ButtonPlus, s))
	}
	assert.Equal(t, 2, s.Config.ActivityTimeHours)

	d.Dispatch(ButtonNone, s)
	assert.Equal(t, ActionIncrease, d.Dispatch(ButtonPlus, s))
	assert.Equal(t, 3, s.Config.ActivityTimeHours)
}

func TestDispatchRunStop(t *testing.T) {
	tests := []struct {
		mode SystemMode
		want Action
	}{
		{ModeOn, ActionNone},
		{ModeStopped, ActionStart},
		{ModeWorking, ActionStop},
		{ModeFinished, ActionNone},
		{ModeFinishedAwait, ActionStart},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			d := NewDispatcher()
			s := &Settings{Mode: tt.mode, Adjust: AdjustTime, Config: DefaultDryerConfig()}
			assert.Equal(t, tt.want, d.Dispatch(ButtonRunStop, s))
			// the dispatcher never changes the mode itself
			assert.Equal(t, tt.mode, s.Mode)
		})
	}
}

func TestDispatchModeToggles(t *testing.T) {
	d := NewDispatcher()
	s := &Settings{Mode: ModeStopped, Adjust: AdjustTime}

	assert.Equal(t, ActionToggle, d.Dispatch(ButtonMode, s))
	assert.Equal(t, AdjustTemperature, s.Adjust)

	d.Dispatch(ButtonNone, s)
	assert.Equal(t, ActionToggle, d.Dispatch(ButtonMode, s))
	assert.Equal(t, AdjustTime, s.Adjust)
}

func TestDispatchAdjustsSelectedSetpoint(t *testing.T) {
	d := NewDispatcher()
	s := working()
	s.Adjust = AdjustTemperature

	d.Dispatch(ButtonPlus, s)
	assert.Equal(t, DryerConfig{ActivityTimeHours: MinTime, WorkTemperatureC: MinTemp + IncrementTemp}, s.Config)

	d.Dispatch(ButtonMinus, s)
	assert.Equal(t, DefaultDryerConfig(), s.Config)
}

func TestDispatchSetpointsIgnoredOutsideWorking(t *testing.T) {
	for _, mode := range []SystemMode{ModeOn, ModeStopped, ModeFinished, ModeFinishedAwait} {
		d := NewDispatcher()
		s := &Settings{Mode: mode, Adjust: AdjustTime, Config: DefaultDryerConfig()}

		assert.Equal(t, ActionNone, d.Dispatch(ButtonPlus, s), mode)
		d.Dispatch(ButtonNone, s)
		assert.Equal(t, ActionNone, d.Dispatch(ButtonMinus, s), mode)
		assert.Equal(t, DefaultDryerConfig(), s.Config, mode)
	}
}

func TestDispatchClampsAtLimits(t *testing.T) {
	d := NewDispatcher()
	s := working()
	s.Config = DryerConfig{ActivityTimeHours: MaxTime, WorkTemperatureC: MaxTemp}

	d.Dispatch(ButtonPlus, s)
	assert.Equal(t, MaxTime, s.Config.ActivityTimeHours)

	d.Dispatch(ButtonNone, s)
	d.Dispatch(ButtonMode, s)
	d.Dispatch(ButtonNone, s)
	d.Dispatch(ButtonPlus, s)
	assert.Equal(t, MaxTemp, s.Config.WorkTemperatureC)

	s.Config = DefaultDryerConfig()
	d.Dispatch(ButtonNone, s)
	d.Dispatch(ButtonMinus, s)
	assert.Equal(t, MinTemp, s.Config.WorkTemperatureC)
}

func TestDispatchRandomSequencesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	buttons := []Button{ButtonNone, ButtonMode, ButtonPlus, ButtonMinus}

	d := NewDispatcher()
	s := working()
	for i := 0; i < 10000; i++ {
		d.Dispatch(buttons[rng.Intn(len(buttons))], s)

		assert.GreaterOrEqual(t, s.Config.ActivityTimeHours, MinTime)
		assert.LessOrEqual(t, s.Config.ActivityTimeHours, MaxTime)
		assert.GreaterOrEqual(t, s.Config.WorkTemperatureC, MinTemp)
		assert.LessOrEqual(t, s.Config.WorkTemperatureC, MaxTemp)
		assert.Zero(t, (s.Config.WorkTemperatureC-MinTemp)%IncrementTemp)
	}
}
