// Command filament-dryer runs the dryer control loop on a Raspberry Pi: it reads
// the keypad and the temperature sensor, drives the heater and indicators, and
// publishes lifecycle events to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/filament-dryer/internal/config"
	"github.com/sweeney/filament-dryer/internal/gpio"
	"github.com/sweeney/filament-dryer/internal/logic"
	"github.com/sweeney/filament-dryer/internal/mqtt"
	"github.com/sweeney/filament-dryer/internal/sensor"
	"github.com/sweeney/filament-dryer/internal/status"
	"github.com/sweeney/filament-dryer/internal/web"
)

// firstSampleTimeout bounds how long --print-state waits for the sensor.
const firstSampleTimeout = 2 * time.Second

func main() {
	printConfig := flag.Bool("print-config", false, "Print the effective configuration as YAML and exit")
	printState := flag.Bool("print-state", false, "Print current buttons and sensor reading and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *printState, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg config.Config, printState bool, logger *zap.Logger) error {
	pins := cfg.Pins()

	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, pins)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer reader.Close()

	source, err := sensor.Open(cfg.SensorOptions(), logger)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer source.Close()

	if printState {
		return printCurrentState(os.Stdout, reader, source)
	}

	writer, err := gpio.NewRealWriter(cfg.GPIO.Chip, pins)
	if err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("release outputs", zap.Error(err))
		}
	}()

	var publisher mqtt.Publisher = discardPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Enabled {
		p := mqtt.NewRealPublisher(cfg.MQTTOptions(), logger)
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Tracker before STARTUP so the snapshot is available.
	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn("publish startup event", zap.Error(err))
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		logger.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	logger.Info("started",
		zap.String("version", status.Version),
		zap.Duration("tick", cfg.Tick()),
		zap.Int("debounce_ms", cfg.DebounceMs),
		zap.String("sensor", cfg.Sensor.Kind),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Duration("heartbeat", cfg.Heartbeat()),
	)

	ticker := time.NewTicker(cfg.Tick())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		reader:     reader,
		writer:     writer,
		source:     source,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		params:     cfg.Params(),
		heartbeat:  cfg.Heartbeat(),
		logger:     logger,
	}, time.Now, ticker.C, sigCh)
}

// loopDeps is everything runLoop talks to. mqttStatus and tracker may be nil.
type loopDeps struct {
	reader     gpio.ButtonReader
	writer     gpio.OutputWriter
	source     sensor.Source
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	params     logic.Params
	heartbeat  time.Duration
	logger     *zap.Logger
}

func runLoop(deps loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	logger := deps.logger
	dryer := logic.NewDryer(deps.params, now())
	cycles := mqtt.NewCycleTracker()

	var (
		volts     float32
		sensorOK  = true
		buttonsOK = true
		outputsOK = true
	)

	refreshTracker := func() {
		if deps.tracker == nil {
			return
		}
		deps.tracker.Update(dryer.Snapshot(), cycles.Current(), sensorOK)
		if deps.mqttStatus != nil {
			deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", zap.Stringer("signal", s))

			// Heater off before anything else can fail.
			if err := deps.writer.Write(logic.Output{}); err != nil {
				logger.Error("clear outputs", zap.Error(err))
			}

			name := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    name,
				Retained:  true,
			}
			if deps.tracker != nil {
				if deps.mqttStatus != nil {
					deps.tracker.SetMQTTConnected(deps.mqttStatus.IsConnected())
				}
				event.RawPayload = status.FormatStatusEvent(deps.tracker.Snapshot(), "SHUTDOWN", name)
			}
			if err := deps.publisher.PublishSystem(event); err != nil {
				logger.Warn("publish shutdown event", zap.Error(err))
			}
			return nil

		case <-tick:
			t := now()

			buttons, err := deps.reader.Read()
			if err != nil {
				// Treat the keypad as released; the debouncer sees a release.
				buttons = logic.ButtonReading{}
				if buttonsOK {
					logger.Warn("button read failed", zap.Error(err))
				}
			} else if !buttonsOK {
				logger.Info("button reads recovered")
			}
			buttonsOK = err == nil

			v, err := deps.source.Read()
			switch {
			case err == nil:
				if !sensorOK {
					logger.Info("sensor reads recovered")
				}
				volts, sensorOK = v, true
			case sensorOK:
				logger.Error("sensor read failed, heater held off", zap.Error(err), zap.Float32("last_volts", volts))
				sensorOK = false
			}

			events := dryer.Update(logic.Input{Buttons: buttons, Volts: volts, Time: t, SensorFault: !sensorOK})

			if err := deps.writer.Write(dryer.Output()); err != nil {
				if outputsOK {
					logger.Error("output write failed", zap.Error(err))
				}
				outputsOK = false
			} else {
				outputsOK = true
			}

			for _, event := range events {
				cycleID := cycles.Observe(event)
				logEvent(logger, event, cycleID)
				if err := deps.publisher.Publish(event, cycleID); err != nil {
					logger.Warn("publish failed", zap.String("event", string(event.Type)), zap.Error(err))
				}
			}

			refreshTracker()

			if hb := dryer.CheckHeartbeat(t, deps.heartbeat); hb != nil {
				logger.Info("heartbeat",
					zap.Duration("uptime", hb.Uptime),
					zap.Int("started", hb.Counts.Started),
					zap.Int("completed", hb.Counts.Completed),
					zap.Int("aborted", hb.Counts.Aborted),
					zap.Int("overtemp", hb.Counts.OverTemp),
				)
				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if deps.tracker != nil {
					if net := readNetworkInfo(); net != nil {
						deps.tracker.SetNetwork(net)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(deps.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := deps.publisher.PublishSystem(hbEvent); err != nil {
					logger.Warn("publish heartbeat", zap.Error(err))
				}
			}
		}
	}
}

// logEvent writes the appliance's running report: transitions at Info,
// progress at Debug and the over-temperature cutoff at Warn.
func logEvent(logger *zap.Logger, event logic.Event, cycleID string) {
	fields := []zap.Field{
		zap.String("event", string(event.Type)),
		zap.String("mode", string(event.Mode)),
		zap.Int("current_c", event.Celsius),
		zap.Int("target_c", event.Config.WorkTemperatureC),
		zap.Int("target_hours", event.Config.ActivityTimeHours),
		zap.Stringer("elapsed", event.Elapsed),
		zap.Bool("heater", event.Heater),
	}
	if cycleID != "" {
		fields = append(fields, zap.String("cycle_id", cycleID))
	}

	switch event.Type {
	case logic.EventProgress:
		logger.Debug("progress", fields...)
	case logic.EventOverTemp:
		logger.Warn("over-temperature cutoff", fields...)
	default:
		logger.Info("dryer event", fields...)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printCurrentState reads the keypad and the sensor once.
func printCurrentState(w io.Writer, reader gpio.ButtonReader, source sensor.Source) error {
	buttons, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read buttons: %w", err)
	}
	volts, err := waitSample(source, firstSampleTimeout)
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	fmt.Fprintf(w, "RUN/STOP: %s, MODE: %s, PLUS: %s, MINUS: %s\n",
		pressed(buttons.RunStop), pressed(buttons.Mode), pressed(buttons.Plus), pressed(buttons.Minus))
	fmt.Fprintf(w, "SENSOR: %.3f V (%d C)\n", volts, int(volts*logic.LM35DegreesPerVolt))
	return nil
}

// waitSample polls source until its background reader has a sample.
func waitSample(source sensor.Source, timeout time.Duration) (float32, error) {
	deadline := time.Now().Add(timeout)
	for {
		v, err := source.Read()
		if !errors.Is(err, sensor.ErrNoSample) || time.Now().After(deadline) {
			return v, err
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func pressed(b bool) string {
	if b {
		return "PRESSED"
	}
	return "RELEASED"
}

// discardPublisher stands in for MQTT when it is disabled.
type discardPublisher struct{}

func (discardPublisher) Publish(logic.Event, string) error { return nil }

func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }

func (discardPublisher) Close() error { return nil }

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
