package main

import (
	"bytes"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/filament-dryer/internal/gpio"
	"github.com/sweeney/filament-dryer/internal/logic"
	"github.com/sweeney/filament-dryer/internal/mqtt"
	"github.com/sweeney/filament-dryer/internal/sensor"
	"github.com/sweeney/filament-dryer/internal/status"
)

// TestEnvVarNames pins the env var constants to what pi-helper writes to
// /run/pi-helper.env. If pi-helper renames them, update the constants.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		assert.Equal(t, canonical, got)
	}
}

func TestReadNetworkInfo(t *testing.T) {
	t.Run("all set", func(t *testing.T) {
		t.Setenv(envNetworkType, "wifi")
		t.Setenv(envNetworkIP, "192.168.1.100")
		t.Setenv(envNetworkStatus, "connected")
		t.Setenv(envNetworkGateway, "192.168.1.1")
		t.Setenv(envNetworkWifiStatus, "connected")
		t.Setenv(envNetworkWifiSSID, "Workshop")

		assert.Equal(t, &status.NetworkInfo{
			Type:       "wifi",
			IP:         "192.168.1.100",
			Status:     "connected",
			Gateway:    "192.168.1.1",
			WifiStatus: "connected",
			SSID:       "Workshop",
		}, readNetworkInfo())
	})

	t.Run("none set", func(t *testing.T) {
		assert.Nil(t, readNetworkInfo())
	})

	t.Run("status only", func(t *testing.T) {
		t.Setenv(envNetworkStatus, "connected")
		assert.Equal(t, &status.NetworkInfo{Status: "connected"}, readNetworkInfo())
	})
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

// --- runLoop tests ---

var (
	idle    = logic.ButtonReading{}
	runStop = logic.ButtonReading{RunStop: true}
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// script concatenates n copies of each reading, in order.
func script(parts ...any) []logic.ButtonReading {
	var out []logic.ButtonReading
	for i := 0; i < len(parts); i += 2 {
		r := parts[i].(logic.ButtonReading)
		for j := 0; j < parts[i+1].(int); j++ {
			out = append(out, r)
		}
	}
	return out
}

type loopFixture struct {
	reader  *gpio.FakeReader
	writer  *gpio.FakeWriter
	source  *sensor.FakeSource
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	deps    loopDeps
}

func newFixture(t *testing.T, readings []logic.ButtonReading) *loopFixture {
	t.Helper()
	f := &loopFixture{
		reader:  gpio.NewFakeReader(readings),
		writer:  gpio.NewFakeWriter(),
		source:  sensor.NewFakeSource([]float32{0.2}),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Now(), status.Config{}),
	}
	params := logic.DefaultParams()
	params.FilterSamples = 1
	f.deps = loopDeps{
		reader:     f.reader,
		writer:     f.writer,
		source:     f.source,
		publisher:  f.pub,
		mqttStatus: f.pub,
		tracker:    f.tracker,
		params:     params,
		logger:     zaptest.NewLogger(t),
	}
	return f
}

// run drives runLoop for nTicks and then delivers sig.
func (f *loopFixture) run(t *testing.T, clock func() time.Time, nTicks int, sig os.Signal) {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(f.deps, clock, tick, sigCh)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sigCh <- sig

	require.NoError(t, <-errCh)
}

func (f *loopFixture) eventTypes() []logic.EventType {
	var out []logic.EventType
	for _, e := range f.pub.Events {
		out = append(out, e.Type)
	}
	return out
}

func (f *loopFixture) systemEvents() []string {
	var out []string
	for _, e := range f.pub.SystemEvents {
		out = append(out, e.Event)
	}
	return out
}

func testClock() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), logic.DefaultTickPeriod)
}

func TestRunLoopIdle(t *testing.T) {
	f := newFixture(t, script(idle, 3))
	f.run(t, testClock(), 3, syscall.SIGTERM)

	assert.Equal(t, []logic.EventType{logic.EventPowerOn}, f.eventTypes())
	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
	assert.Equal(t, "SIGTERM", f.pub.SystemEvents[0].Reason)
	assert.True(t, f.pub.SystemEvents[0].Retained)
	assert.NotEmpty(t, f.pub.SystemEvents[0].RawPayload)

	// three ticks plus the shutdown clear
	require.Len(t, f.writer.Writes, 4)
	assert.True(t, f.writer.Writes[0].RunLED)
	assert.False(t, f.writer.Writes[0].Heater)
	assert.Equal(t, logic.Output{}, f.writer.Last())

	snap := f.tracker.Snapshot()
	assert.True(t, snap.Powered)
	assert.True(t, snap.SensorOK)
	assert.Equal(t, logic.ModeStopped, snap.Dryer.Mode)
	assert.Equal(t, 20, snap.Dryer.Celsius)
}

func TestRunLoopStartAndStopCycle(t *testing.T) {
	// power on, press run/stop, release, press again
	readings := script(idle, 1, runStop, 4, idle, 4, runStop, 4)
	f := newFixture(t, readings)
	f.run(t, testClock(), len(readings), syscall.SIGTERM)

	require.Equal(t, []logic.EventType{logic.EventPowerOn, logic.EventStarted, logic.EventStopped}, f.eventTypes())

	assert.Empty(t, f.pub.CycleIDs[0])
	assert.NotEmpty(t, f.pub.CycleIDs[1])
	assert.Equal(t, f.pub.CycleIDs[1], f.pub.CycleIDs[2], "STOPPED closes the cycle STARTED opened")

	// 20 °C is below target-margin, so the heater runs from the STARTED tick.
	assert.True(t, f.writer.Writes[4].Heater)
	assert.False(t, f.writer.Writes[len(readings)-1].Heater)

	snap := f.tracker.Snapshot()
	assert.Equal(t, logic.ModeStopped, snap.Dryer.Mode)
	assert.Empty(t, snap.CycleID)
	assert.Equal(t, logic.Counts{Started: 1, Aborted: 1}, snap.Dryer.Counts)
}

func TestRunLoopTrackerFollowsCycle(t *testing.T) {
	readings := script(idle, 1, runStop, 4)
	f := newFixture(t, readings)
	f.run(t, testClock(), len(readings), syscall.SIGTERM)

	snap := f.tracker.Snapshot()
	assert.Equal(t, logic.ModeWorking, snap.Dryer.Mode)
	assert.Equal(t, f.pub.CycleIDs[1], snap.CycleID)
}

// faultReader returns errors for calls in [faultStart, faultEnd).
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int
	faultEnd   int
}

func (r *faultReader) Read() (logic.ButtonReading, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return logic.ButtonReading{}, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

func TestRunLoopButtonReadError(t *testing.T) {
	// A fault in the middle of a press resets the debouncer, so no START.
	f := newFixture(t, nil)
	f.deps.reader = &faultReader{
		inner:      gpio.NewFakeReader(script(idle, 1, runStop, 5)),
		faultStart: 3,
		faultEnd:   4,
	}
	f.run(t, testClock(), 5, syscall.SIGTERM)

	assert.Equal(t, []logic.EventType{logic.EventPowerOn}, f.eventTypes())
	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
	assert.Len(t, f.writer.Writes, 6)
}

// flakySource returns good samples and then fails.
type flakySource struct {
	good  []float32
	calls int
}

func (s *flakySource) Read() (float32, error) {
	i := s.calls
	s.calls++
	if i < len(s.good) {
		return s.good[i], nil
	}
	return 0, errors.New("adc timeout")
}

func (s *flakySource) Close() error { return nil }

func TestRunLoopSensorErrorHoldsLastValue(t *testing.T) {
	f := newFixture(t, script(idle, 4))
	f.deps.source = &flakySource{good: []float32{0.5}}
	f.run(t, testClock(), 4, syscall.SIGTERM)

	snap := f.tracker.Snapshot()
	assert.False(t, snap.SensorOK)
	assert.Equal(t, 50, snap.Dryer.Celsius)
}

func TestRunLoopStaleSensorForcesHeaterOff(t *testing.T) {
	readings := script(idle, 1, runStop, 4, idle, 6)
	f := newFixture(t, readings)
	good := make([]float32, 7)
	for i := range good {
		good[i] = 0.2
	}
	f.deps.source = &flakySource{good: good}
	f.run(t, testClock(), len(readings), syscall.SIGTERM)

	require.Len(t, f.writer.Writes, len(readings)+1)
	assert.True(t, f.writer.Writes[6].Heater)
	for i := 7; i < len(readings); i++ {
		assert.False(t, f.writer.Writes[i].Heater, "tick %d", i)
	}

	snap := f.tracker.Snapshot()
	assert.False(t, snap.SensorOK)
	assert.False(t, snap.Dryer.Output.Heater)
	assert.Equal(t, logic.ModeWorking, snap.Dryer.Mode)
	assert.Zero(t, snap.Dryer.Counts.OverTemp)
}

func TestRunLoopPublishError(t *testing.T) {
	readings := script(idle, 1, runStop, 4)
	f := newFixture(t, readings)
	f.pub.PublishError = errors.New("broker unavailable")
	f.run(t, testClock(), len(readings), syscall.SIGTERM)

	assert.Empty(t, f.pub.Events)
	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
	assert.Equal(t, logic.ModeWorking, f.tracker.Snapshot().Dryer.Mode)
}

func TestRunLoopWriteError(t *testing.T) {
	f := newFixture(t, script(idle, 3))
	f.writer.WriteError = errors.New("line busy")
	f.run(t, testClock(), 3, syscall.SIGTERM)

	assert.Empty(t, f.writer.Writes)
	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Clock calls: t0 (dryer start), t1..t4 (ticks), t5 (shutdown).
	// At t3 = 15 min the interval has elapsed since t0.
	f := newFixture(t, script(idle, 4))
	f.deps.heartbeat = 15 * time.Minute
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)
	f.run(t, clock, 4, syscall.SIGTERM)

	require.Equal(t, []string{"HEARTBEAT", "SHUTDOWN"}, f.systemEvents())
	hb := f.pub.SystemEvents[0]
	assert.Equal(t, time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC), hb.Timestamp)
	assert.Contains(t, string(hb.RawPayload), `"HEARTBEAT"`)
	assert.False(t, hb.Retained)
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	f := newFixture(t, script(idle, 4))
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour)
	f.run(t, clock, 4, syscall.SIGTERM)

	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	f := newFixture(t, script(idle, 2))
	f.run(t, testClock(), 2, syscall.SIGINT)

	require.Len(t, f.pub.SystemEvents, 1)
	assert.Equal(t, "SIGINT", f.pub.SystemEvents[0].Reason)
	assert.Contains(t, string(f.pub.SystemEvents[0].RawPayload), `"SIGINT"`)
}

func TestRunLoopShutdownBeforeFirstTick(t *testing.T) {
	f := newFixture(t, script(idle, 1))
	f.run(t, testClock(), 0, syscall.SIGTERM)

	assert.Empty(t, f.pub.Events)
	assert.Equal(t, []string{"SHUTDOWN"}, f.systemEvents())
	assert.False(t, f.tracker.Snapshot().Powered)
}

func TestRunLoopMQTTStatus(t *testing.T) {
	f := newFixture(t, script(idle, 2))
	f.pub.Connected = true
	f.run(t, testClock(), 2, syscall.SIGTERM)

	assert.True(t, f.tracker.Snapshot().MQTTConnected)
}

func TestRunLoopWithoutTracker(t *testing.T) {
	readings := script(idle, 1, runStop, 4)
	f := newFixture(t, readings)
	f.deps.tracker = nil
	f.deps.mqttStatus = nil
	f.run(t, testClock(), len(readings), syscall.SIGTERM)

	assert.Equal(t, []logic.EventType{logic.EventPowerOn, logic.EventStarted}, f.eventTypes())
	require.Len(t, f.pub.SystemEvents, 1)
	assert.Empty(t, f.pub.SystemEvents[0].RawPayload)
}

func TestPrintCurrentState(t *testing.T) {
	reader := gpio.NewFakeReader([]logic.ButtonReading{{Mode: true}})
	source := sensor.NewFakeSource([]float32{0.5})

	var buf bytes.Buffer
	require.NoError(t, printCurrentState(&buf, reader, source))

	assert.Equal(t,
		"RUN/STOP: RELEASED, MODE: PRESSED, PLUS: RELEASED, MINUS: RELEASED\nSENSOR: 0.500 V (50 C)\n",
		buf.String())
}

type emptySource struct{}

func (emptySource) Read() (float32, error) { return 0, sensor.ErrNoSample }

func (emptySource) Close() error { return nil }

func TestWaitSampleTimeout(t *testing.T) {
	_, err := waitSample(emptySource{}, 50*time.Millisecond)
	assert.ErrorIs(t, err, sensor.ErrNoSample)
}

func TestDiscardPublisher(t *testing.T) {
	var p mqtt.Publisher = discardPublisher{}
	assert.NoError(t, p.Publish(logic.Event{Type: logic.EventStarted}, "id"))
	assert.NoError(t, p.PublishSystem(mqtt.SystemEvent{Event: "STARTUP"}))
	assert.NoError(t, p.Close())
}
