// Package config loads the daemon configuration from defaults, an optional
// YAML file named by CONFIG_FILE, a .env file and DRYER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/filament-dryer/internal/gpio"
	"github.com/sweeney/filament-dryer/internal/logic"
	"github.com/sweeney/filament-dryer/internal/mqtt"
	"github.com/sweeney/filament-dryer/internal/sensor"
	"github.com/sweeney/filament-dryer/internal/status"
)

// EnvPrefix is prepended to every environment variable, e.g. DRYER_TICK_MS
// or DRYER_MQTT_BROKER.
const EnvPrefix = "DRYER"

// Config is the effective daemon configuration.
type Config struct {
	TickMs        int `mapstructure:"tick_ms" yaml:"tick_ms"`
	DebounceMs    int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	FilterSamples int `mapstructure:"filter_samples" yaml:"filter_samples"`
	HysteresisC   int `mapstructure:"hysteresis_c" yaml:"hysteresis_c"`
	OverTempC     int `mapstructure:"overtemp_c" yaml:"overtemp_c"`
	BeepEveryS    int `mapstructure:"beep_every_s" yaml:"beep_every_s"`
	BeepTicks     int `mapstructure:"beep_ticks" yaml:"beep_ticks"`
	BlinkEveryS   int `mapstructure:"blink_every_s" yaml:"blink_every_s"`

	GPIO   GPIOConfig   `mapstructure:"gpio" yaml:"gpio"`
	Sensor SensorConfig `mapstructure:"sensor" yaml:"sensor"`
	MQTT   MQTTConfig   `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`

	HeartbeatMs int    `mapstructure:"heartbeat_ms" yaml:"heartbeat_ms"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string `mapstructure:"log_format" yaml:"log_format"`
}

type GPIOConfig struct {
	Chip        string `mapstructure:"chip" yaml:"chip"`
	RunStop     int    `mapstructure:"run_stop" yaml:"run_stop"`
	Mode        int    `mapstructure:"mode" yaml:"mode"`
	Plus        int    `mapstructure:"plus" yaml:"plus"`
	Minus       int    `mapstructure:"minus" yaml:"minus"`
	Heater      int    `mapstructure:"heater" yaml:"heater"`
	ActivityLED int    `mapstructure:"activity_led" yaml:"activity_led"`
	RunLED      int    `mapstructure:"run_led" yaml:"run_led"`
	Buzzer      int    `mapstructure:"buzzer" yaml:"buzzer"`
}

type SensorConfig struct {
	Kind           string  `mapstructure:"kind" yaml:"kind"`
	Port           string  `mapstructure:"port" yaml:"port"`
	Baud           int     `mapstructure:"baud" yaml:"baud"`
	ADCBits        int     `mapstructure:"adc_bits" yaml:"adc_bits"`
	VRef           float32 `mapstructure:"vref" yaml:"vref"`
	ModbusURL      string  `mapstructure:"modbus_url" yaml:"modbus_url"`
	ModbusUnit     uint8   `mapstructure:"modbus_unit" yaml:"modbus_unit"`
	ModbusRegister uint16  `mapstructure:"modbus_register" yaml:"modbus_register"`
	PollMs         int     `mapstructure:"poll_ms" yaml:"poll_ms"`
	FakeVolts      float32 `mapstructure:"fake_volts" yaml:"fake_volts"`
}

type MQTTConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker    string `mapstructure:"broker" yaml:"broker"`
	ClientID  string `mapstructure:"client_id" yaml:"client_id"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	BaseTopic string `mapstructure:"base_topic" yaml:"base_topic"`
	Buffer    int    `mapstructure:"buffer" yaml:"buffer"`
}

type HTTPConfig struct {
	// Addr is the listen address; empty disables the status server.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

func setDefaults(v *viper.Viper) {
	p := logic.DefaultParams()
	v.SetDefault("tick_ms", p.TickPeriod.Milliseconds())
	v.SetDefault("debounce_ms", p.Debounce.Milliseconds())
	v.SetDefault("filter_samples", p.FilterSamples)
	v.SetDefault("hysteresis_c", p.Hysteresis)
	v.SetDefault("overtemp_c", p.OverTemp)
	v.SetDefault("beep_every_s", p.BeepEvery)
	v.SetDefault("beep_ticks", p.BeepTicks)
	v.SetDefault("blink_every_s", p.BlinkEvery)

	pins := gpio.DefaultPins
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.run_stop", pins.RunStop)
	v.SetDefault("gpio.mode", pins.Mode)
	v.SetDefault("gpio.plus", pins.Plus)
	v.SetDefault("gpio.minus", pins.Minus)
	v.SetDefault("gpio.heater", pins.Heater)
	v.SetDefault("gpio.activity_led", pins.ActivityLED)
	v.SetDefault("gpio.run_led", pins.RunLED)
	v.SetDefault("gpio.buzzer", pins.Buzzer)

	v.SetDefault("sensor.kind", string(sensor.KindSerial))
	v.SetDefault("sensor.port", "/dev/ttyUSB0")
	v.SetDefault("sensor.baud", 115200)
	v.SetDefault("sensor.adc_bits", 12)
	v.SetDefault("sensor.vref", 3.3)
	v.SetDefault("sensor.modbus_url", "")
	v.SetDefault("sensor.modbus_unit", 1)
	v.SetDefault("sensor.modbus_register", 0)
	v.SetDefault("sensor.poll_ms", 100)
	v.SetDefault("sensor.fake_volts", 0.25)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "filament-dryer")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", mqtt.DefaultBaseTopic)
	v.SetDefault("mqtt.buffer", mqtt.DefaultBufferSize)

	v.SetDefault("http.addr", ":80")
	v.SetDefault("heartbeat_ms", (15 * time.Minute).Milliseconds())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Default returns the built-in configuration without consulting the
// environment or any file.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads the configuration. The YAML file named by CONFIG_FILE (if set)
// overrides defaults, and DRYER_* variables override both. The result is
// validated.
func Load() (Config, error) {
	return load(os.Getenv("CONFIG_FILE"))
}

func load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.TickMs <= 0 {
		errs = append(errs, errors.New("tick_ms must be > 0"))
	}
	if c.DebounceMs < c.TickMs {
		errs = append(errs, errors.New("debounce_ms must be >= tick_ms"))
	}
	if c.FilterSamples < 1 {
		errs = append(errs, errors.New("filter_samples must be >= 1"))
	}
	if c.HysteresisC < 0 {
		errs = append(errs, errors.New("hysteresis_c must be >= 0"))
	}
	if c.OverTempC <= logic.MaxTemp {
		errs = append(errs, fmt.Errorf("overtemp_c must be > %d", logic.MaxTemp))
	}
	if c.HeartbeatMs < 0 {
		errs = append(errs, errors.New("heartbeat_ms must be >= 0"))
	}

	seen := make(map[int]string)
	for _, line := range []struct {
		name   string
		offset int
	}{
		{"gpio.run_stop", c.GPIO.RunStop},
		{"gpio.mode", c.GPIO.Mode},
		{"gpio.plus", c.GPIO.Plus},
		{"gpio.minus", c.GPIO.Minus},
		{"gpio.heater", c.GPIO.Heater},
		{"gpio.activity_led", c.GPIO.ActivityLED},
		{"gpio.run_led", c.GPIO.RunLED},
		{"gpio.buzzer", c.GPIO.Buzzer},
	} {
		if line.offset < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0", line.name))
			continue
		}
		if other, ok := seen[line.offset]; ok {
			errs = append(errs, fmt.Errorf("%s and %s share offset %d", other, line.name, line.offset))
			continue
		}
		seen[line.offset] = line.name
	}

	switch sensor.Kind(c.Sensor.Kind) {
	case sensor.KindSerial:
		if c.Sensor.Port == "" {
			errs = append(errs, errors.New("sensor.port is required for the serial sensor"))
		}
	case sensor.KindModbus:
		if c.Sensor.ModbusURL == "" {
			errs = append(errs, errors.New("sensor.modbus_url is required for the modbus sensor"))
		}
	case sensor.KindFake:
	default:
		errs = append(errs, fmt.Errorf("unknown sensor.kind %q", c.Sensor.Kind))
	}
	if c.Sensor.Kind != string(sensor.KindFake) && (c.Sensor.ADCBits < 1 || c.Sensor.ADCBits > 16) {
		errs = append(errs, errors.New("sensor.adc_bits must be between 1 and 16"))
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt.enabled is set"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// YAML renders the configuration with the password redacted.
func (c Config) YAML() ([]byte, error) {
	if c.MQTT.Password != "" {
		c.MQTT.Password = "*redacted*"
	}
	return yaml.Marshal(c)
}

// Params returns the core timing and control constants.
func (c Config) Params() logic.Params {
	return logic.Params{
		TickPeriod:    c.Tick(),
		Debounce:      time.Duration(c.DebounceMs) * time.Millisecond,
		FilterSamples: c.FilterSamples,
		Hysteresis:    c.HysteresisC,
		OverTemp:      c.OverTempC,
		BlinkEvery:    c.BlinkEveryS,
		BeepEvery:     c.BeepEveryS,
		BeepTicks:     c.BeepTicks,
	}
}

// Tick returns the control loop period.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval; zero disables heartbeats.
func (c Config) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMs) * time.Millisecond
}

// Pins returns the GPIO line offsets.
func (c Config) Pins() gpio.Pins {
	return gpio.Pins{
		RunStop:     c.GPIO.RunStop,
		Mode:        c.GPIO.Mode,
		Plus:        c.GPIO.Plus,
		Minus:       c.GPIO.Minus,
		Heater:      c.GPIO.Heater,
		ActivityLED: c.GPIO.ActivityLED,
		RunLED:      c.GPIO.RunLED,
		Buzzer:      c.GPIO.Buzzer,
	}
}

// SensorOptions returns the options for sensor.Open.
func (c Config) SensorOptions() sensor.Options {
	return sensor.Options{
		Kind:           sensor.Kind(c.Sensor.Kind),
		Port:           c.Sensor.Port,
		Baud:           c.Sensor.Baud,
		ModbusURL:      c.Sensor.ModbusURL,
		ModbusUnit:     c.Sensor.ModbusUnit,
		ModbusRegister: c.Sensor.ModbusRegister,
		Poll:           time.Duration(c.Sensor.PollMs) * time.Millisecond,
		ADCBits:        c.Sensor.ADCBits,
		VRef:           c.Sensor.VRef,
		FakeVolts:      c.Sensor.FakeVolts,
	}
}

// MQTTOptions returns the options for mqtt.NewRealPublisher.
func (c Config) MQTTOptions() mqtt.Options {
	return mqtt.Options{
		Broker:     c.MQTT.Broker,
		ClientID:   c.MQTT.ClientID,
		Username:   c.MQTT.Username,
		Password:   c.MQTT.Password,
		Topics:     mqtt.NewTopics(c.MQTT.BaseTopic),
		BufferSize: c.MQTT.Buffer,
	}
}

// Status returns the subset shown on the status page.
func (c Config) Status() status.Config {
	broker := ""
	if c.MQTT.Enabled {
		broker = c.MQTT.Broker
	}
	return status.Config{
		TickMs:      int64(c.TickMs),
		DebounceMs:  int64(c.DebounceMs),
		HeartbeatMs: int64(c.HeartbeatMs),
		Hysteresis:  c.HysteresisC,
		OverTempC:   c.OverTempC,
		Sensor:      c.Sensor.Kind,
		Broker:      broker,
		BaseTopic:   c.MQTT.BaseTopic,
		HTTPAddr:    c.HTTP.Addr,
	}
}

// Logger builds the zap logger selected by log_level and log_format.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zapCfg := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
