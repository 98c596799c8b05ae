package status

import (
	"encoding/json"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// Version is the build version reported in status output.
var Version = versioninfo.Short()

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	Ready         bool         `json:"ready"`
	Dryer         DryerJSON    `json:"dryer"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"cycle_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DryerJSON is the dryer state: lifecycle, setpoints, measurement and outputs.
type DryerJSON struct {
	Mode           string `json:"mode"`
	Adjust         string `json:"adjust"`
	CycleID        string `json:"cycle_id,omitempty"`
	TargetHours    int    `json:"target_hours"`
	TargetC        int    `json:"target_c"`
	CurrentC       int    `json:"current_c"`
	SensorOK       bool   `json:"sensor_ok"`
	Elapsed        string `json:"elapsed"`
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Button         string `json:"button"`
	Heater         bool   `json:"heater"`
	ActivityLED    bool   `json:"activity_led"`
	RunLED         bool   `json:"run_led"`
	Buzzer         bool   `json:"buzzer"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of cycle counts.
type CountsJSON struct {
	Started   int `json:"started"`
	Completed int `json:"completed"`
	Aborted   int `json:"aborted"`
	OverTemp  int `json:"overtemp"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs      int64  `json:"tick_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Hysteresis  int    `json:"hysteresis_c"`
	OverTempC   int    `json:"overtemp_c"`
	Sensor      string `json:"sensor"`
	Broker      string `json:"broker"`
	BaseTopic   string `json:"base_topic"`
	HTTPAddr    string `json:"http_addr"`
}

// ModeOrUnknown returns the lifecycle mode, or UNKNOWN before the first tick.
func (s Snapshot) ModeOrUnknown() string {
	if !s.Powered || s.Dryer.Mode == "" {
		return "UNKNOWN"
	}
	return string(s.Dryer.Mode)
}

func buildInner(snap Snapshot) StatusInner {
	d := snap.Dryer
	button := string(d.Button)
	if button == "" {
		button = "NONE"
	}

	inner := StatusInner{
		Version: Version,
		Ready:   snap.Powered,
		Dryer: DryerJSON{
			Mode:           snap.ModeOrUnknown(),
			Adjust:         string(d.Adjust),
			CycleID:        snap.CycleID,
			TargetHours:    d.Config.ActivityTimeHours,
			TargetC:        d.Config.WorkTemperatureC,
			CurrentC:       d.Celsius,
			SensorOK:       snap.SensorOK,
			Elapsed:        d.Elapsed.String(),
			ElapsedSeconds: int64(d.Elapsed.Duration().Seconds()),
			Button:         button,
			Heater:         d.Output.Heater,
			ActivityLED:    d.Output.ActivityLED,
			RunLED:         d.Output.RunLED,
			Buzzer:         d.Output.Buzzer,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Started:   d.Counts.Started,
			Completed: d.Counts.Completed,
			Aborted:   d.Counts.Aborted,
			OverTemp:  d.Counts.OverTemp,
		},
		Config: ConfigJSON{
			TickMs:      snap.Config.TickMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Hysteresis:  snap.Config.Hysteresis,
			OverTempC:   snap.Config.OverTempC,
			Sensor:      snap.Config.Sensor,
			Broker:      snap.Config.Broker,
			BaseTopic:   snap.Config.BaseTopic,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
