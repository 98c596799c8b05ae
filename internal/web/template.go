package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/filament-dryer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Filament Dryer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Filament Dryer</h1>

<h2>Cycle</h2>
<table>
<tr><th>Mode</th><td id="mode" class="{{if eq .Mode "WORKING"}}on{{else if eq .Mode "UNKNOWN"}}unknown{{else}}off{{end}}">{{.Mode}}</td></tr>
<tr><th>Elapsed</th><td id="elapsed">{{.Dryer.Elapsed}} / {{.Dryer.Config.ActivityTimeHours}}h</td></tr>
<tr><th>Temperature</th><td id="temperature">{{.Dryer.Celsius}} °C / {{.Dryer.Config.WorkTemperatureC}} °C{{if not .SensorOK}} <span class="unknown">(sensor fault)</span>{{end}}</td></tr>
<tr><th>Adjusting</th><td>{{.Dryer.Adjust}}</td></tr>
{{if .CycleID}}<tr><th>Cycle ID</th><td>{{.CycleID}}</td></tr>{{end}}
</table>

<h2>Outputs</h2>
<table>
<tr><th>Heater</th><td id="heater" class="{{if .Dryer.Output.Heater}}on{{else}}off{{end}}">{{onOff .Dryer.Output.Heater}}</td></tr>
<tr><th>Activity LED</th><td>{{onOff .Dryer.Output.ActivityLED}}</td></tr>
<tr><th>Buzzer</th><td>{{onOff .Dryer.Output.Buzzer}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Cycle Counts</h2>
<table>
<tr><th>Started</th><td>{{.Dryer.Counts.Started}}</td></tr>
<tr><th>Completed</th><td>{{.Dryer.Counts.Completed}}</td></tr>
<tr><th>Aborted</th><td>{{.Dryer.Counts.Aborted}}</td></tr>
<tr><th>Over-temperature</th><td>{{.Dryer.Counts.OverTemp}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Version</th><td>{{.Version}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sensor</th><td>{{.Config.Sensor}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Mode    string
		Uptime  time.Duration
		Version string
	}{
		Snapshot: snap,
		Mode:     snap.ModeOrUnknown(),
		Uptime:   snap.Uptime(),
		Version:  status.Version,
	}
	return indexTmpl.Execute(w, data)
}
