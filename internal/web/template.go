package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ev-telemetry/internal/status"
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
	"f1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"f3": func(v float64) string { return fmt.Sprintf("%.3f", v) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>EV Telemetry</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alarm { color: red; font-weight: bold; }
.ok { color: green; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>EV Telemetry<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>
{{with .Telemetry}}
<h2>Motion</h2>
<table>
<tr><th>Speed</th><td id="speed">{{f2 .Motion.SpeedKmh}}</td></tr>
<tr><th>RPM</th><td id="rpm">{{f1 .Motion.RPM}}</td></tr>
<tr><th>Average speed</th><td id="avg-speed">{{f2 .Motion.AvgSpeedKmh}}</td></tr>
<tr><th>Max speed</th><td id="max-speed">{{f2 .Motion.MaxSpeedKmh}}</td></tr>
<tr><th>Distance (km)</th><td id="distance">{{f3 .Trip.DistanceKm}}</td></tr>
<tr><th>Moving time (s)</th><td id="runtime">{{.Trip.RuntimeSeconds}}</td></tr>
</table>

<h2>Power</h2>
<table>
<tr><th>Current (A)</th><td id="amps">{{f2 .Power.Amperes}}</td></tr>
<tr><th>Power (W)</th><td id="watts">{{f1 .Power.Watts}}</td></tr>
<tr><th>Max current (A)</th><td id="max-amps">{{f2 .Power.MaxAmperes}}</td></tr>
<tr><th>Used (Ah)</th><td id="amp-hours">{{f3 .Power.AmpHours}}</td></tr>
<tr><th>Used (Wh)</th><td id="watt-hours">{{f3 .Power.WattHours}}</td></tr>
<tr><th>Efficiency (km/Ah)</th><td id="efficiency">{{f3 .Trip.Efficiency}}</td></tr>
</table>

<h2>Battery</h2>
<table>
<tr><th>Voltage</th><td id="voltage">{{f2 .Battery.Voltage}}</td></tr>
<tr><th>Level (%)</th><td id="percentage">{{f1 .Battery.Percentage}}</td></tr>
<tr><th>Temperature (C)</th><td id="temperature" class="{{if .Battery.Alarm}}alarm{{else}}ok{{end}}">{{f2 .Battery.TemperatureC}}</td></tr>
</table>

<h2>Trip</h2>
<table>
<tr><th>ID</th><td id="trip-id">{{.Trip.ID}}</td></tr>
<tr><th>Started</th><td id="trip-start">{{.Trip.Start}}</td></tr>
</table>
<form method="post" action="/api/trip/reset"><button type="submit">Reset trip</button></form>
{{else}}
<p>Waiting for first reading.</p>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Alarm</th><td>{{.AlarmState}} ({{.Config.MorsePattern}}, {{.Config.MorseUnitMs}}ms)</td></tr>
<tr><th>Edges</th><td>{{.Edges}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) { dot.className = "live-dot " + cls; dot.title = title; }
  function set(id, v, places) {
    var el = document.getElementById(id);
    if (el) { el.textContent = places === undefined ? v : Number(v).toFixed(places); }
  }
  function connect() {
    var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() { setDot("err", "offline"); setTimeout(connect, 5000); };
    ws.onmessage = function(e) {
      try {
        var t = JSON.parse(e.data);
        set("speed", t.motion.speed_kmh, 2);
        set("rpm", t.motion.rpm, 1);
        set("avg-speed", t.motion.avg_speed_kmh, 2);
        set("max-speed", t.motion.max_speed_kmh, 2);
        set("distance", t.trip.distance_km, 3);
        set("runtime", t.trip.runtime_seconds);
        set("amps", t.power.amperes, 2);
        set("watts", t.power.watts, 1);
        set("max-amps", t.power.max_amperes, 2);
        set("amp-hours", t.power.amp_hours, 3);
        set("watt-hours", t.power.watt_hours, 3);
        set("efficiency", t.trip.efficiency_km_per_ah, 3);
        set("voltage", t.battery.voltage, 2);
        set("percentage", t.battery.percentage, 1);
        set("temperature", t.battery.temperature_c, 2);
        set("trip-id", t.trip.id);
        set("trip-start", t.trip.start);
        var temp = document.getElementById("temperature");
        if (temp) { temp.className = t.battery.alarm ? "alarm" : "ok"; }
      } catch (err) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Telemetry *status.TelemetryJSON
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	if snap.HaveMetrics {
		tj := status.NewTelemetryJSON(snap.Metrics)
		data.Telemetry = &tj
	}
	indexTmpl.Execute(w, data)
}
