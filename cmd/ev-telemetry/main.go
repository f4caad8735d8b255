// Command ev-telemetry turns wheel edges and battery sensor readings into
// speed, power and battery metrics once per second, sounds the battery alarm
// and publishes telemetry to MQTT and a live dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sweeney/ev-telemetry/internal/alarm"
	"github.com/sweeney/ev-telemetry/internal/capture"
	"github.com/sweeney/ev-telemetry/internal/config"
	"github.com/sweeney/ev-telemetry/internal/gpio"
	"github.com/sweeney/ev-telemetry/internal/logic"
	"github.com/sweeney/ev-telemetry/internal/mqtt"
	"github.com/sweeney/ev-telemetry/internal/sensor"
	"github.com/sweeney/ev-telemetry/internal/status"
	"github.com/sweeney/ev-telemetry/internal/web"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file to load (missing file is ignored)")
	printState := flag.Bool("print-state", false, "Read every sensor once, print and exit")
	httpAddr := flag.String("http", "", "HTTP dashboard address, overrides HTTP_ADDR (\"off\" disables)")
	broker := flag.String("broker", "", "MQTT broker address, overrides MQTT_BROKER")

	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if *httpAddr == "off" {
		cfg.HTTPAddr = ""
	} else if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// sensors groups the raw collaborators read on each tick.
type sensors struct {
	current *sensor.Averager
	voltage sensor.ADC
	thermo  sensor.Thermometer
	clock   sensor.Clock
}

func openSensors(cfg config.Config) (sensors, func(), error) {
	bus, err := sensor.OpenI2C(cfg.I2CBus)
	if err != nil {
		return sensors{}, nil, fmt.Errorf("open i2c: %w", err)
	}

	ads := sensor.NewADS1115(bus, sensor.ADS1115Config{Address: cfg.ADSAddress, Gain: cfg.ADSGain})

	therm, err := sensor.FindDS18B20(cfg.W1Devices)
	if err != nil {
		bus.Close()
		return sensors{}, nil, fmt.Errorf("find thermometer: %w", err)
	}
	if err := therm.SetResolution(cfg.TempResolution); err != nil {
		log.Printf("thermometer resolution not set: %v", err)
	}

	var clock sensor.Clock = sensor.SystemClock{}
	if cfg.UseRTC {
		rtc := sensor.NewDS3231(bus)
		rtc.Address = cfg.RTCAddress
		clock = rtc
	}

	s := sensors{
		current: &sensor.Averager{
			ADC:     ads.Channel(cfg.CurrentChannel),
			Samples: cfg.Cal.CurrentSamples,
			Delay:   cfg.Cal.CurrentSampleDelay,
		},
		voltage: ads.Channel(cfg.VoltageChannel),
		thermo:  therm,
		clock:   clock,
	}
	return s, func() { bus.Close() }, nil
}

func run(cfg config.Config, printState bool) error {
	s, closeSensors, err := openSensors(cfg)
	if err != nil {
		return err
	}
	defer closeSensors()

	if printState {
		return printSensors(os.Stdout, cfg.Cal, s)
	}

	edgeCapture := capture.New(cfg.Cal.TickFrequency, cfg.Cal.WatchdogTicks())
	edges, err := gpio.NewRealEdgeSource(cfg.GPIOChip, cfg.PinRotation, edgeCapture.Edge)
	if err != nil {
		return fmt.Errorf("init rotation sensor: %w", err)
	}
	defer edges.Close()

	buzzer, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinBuzzer)
	if err != nil {
		return fmt.Errorf("init buzzer: %w", err)
	}
	defer buzzer.Close()

	led, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinLED)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer led.Close()
	indicator := gpio.NewPulser(led, cfg.LEDPulse)
	defer indicator.Stop()

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
	}, time.Now())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetMQTTConnected(publisher.IsConnected())

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	hub := web.NewHub()
	go hub.Run()
	defer hub.Close()

	resets := make(chan struct{}, 1)
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, hub, resets)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http dashboard listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: poll=%v broker=%s heartbeat=%v pattern=%q unit=%v",
		cfg.Poll, cfg.Broker, cfg.Heartbeat, cfg.MorsePattern, cfg.MorseUnit)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	d := deps{
		cfg:        cfg,
		capture:    edgeCapture,
		monotonic:  gpio.Monotonic,
		sensors:    s,
		buzzer:     buzzer,
		indicator:  indicator,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		hub:        hub,
		newTripID:  func() string { return uuid.New().String() },
	}
	return runLoop(d, time.Now, ticker.C, sigCh, resets)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:       cfg.Poll.Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat.Milliseconds(),
		Broker:       cfg.Broker,
		HTTPAddr:     cfg.HTTPAddr,
		MorsePattern: cfg.MorsePattern,
		MorseUnitMs:  cfg.MorseUnit.Milliseconds(),
		MinTempC:     cfg.Cal.MinTemperatureC,
		MaxTempC:     cfg.Cal.MaxTemperatureC,
	}
}

// printSensors reads every sensor once and prints the converted values.
func printSensors(w io.Writer, cal logic.Calibration, s sensors) error {
	ts, err := s.clock.Now()
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	an := logic.NewContext(cal, "", ts.Time(time.Local))

	raw, err := s.current.Read()
	if err != nil {
		return fmt.Errorf("read current: %w", err)
	}
	vraw, err := s.voltage.ReadRaw()
	if err != nil {
		return fmt.Errorf("read voltage: %w", err)
	}
	an.UpdateVoltage(float64(vraw))
	an.UpdatePower(raw)

	if err := s.thermo.RequestTemperature(); err != nil {
		return fmt.Errorf("request temperature: %w", err)
	}
	celsius, err := s.thermo.ReadTemperature()
	if err != nil {
		return fmt.Errorf("read temperature: %w", err)
	}
	an.UpdateTemperature(celsius)

	fmt.Fprintf(w, "time: %s\n", ts)
	fmt.Fprintf(w, "current: raw=%.1f %.1fmV %.2fA %.1fW\n", raw, an.Power.Millivolts, an.Power.Amperes, an.Power.Watts)
	fmt.Fprintf(w, "battery: raw=%d %.2fV %.1f%%\n", vraw, an.Battery.Voltage, an.Battery.Percentage)
	fmt.Fprintf(w, "temperature: %.2fC alarm=%t\n", an.Battery.TemperatureC, an.Battery.AlarmActive)
	return nil
}

// pulser flashes the turning indicator.
type pulser interface {
	Pulse()
}

// broadcaster pushes live telemetry to dashboard clients.
type broadcaster interface {
	Broadcast(msg []byte)
}

// deps are the collaborators of the main loop. The loop is the only
// goroutine touching the analytics context and the sequencer.
type deps struct {
	cfg        config.Config
	capture    *capture.Capture
	monotonic  func() uint64
	sensors    sensors
	buzzer     gpio.Output
	indicator  pulser
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	hub        broadcaster
	newTripID  func() string
}

type loop struct {
	deps
	analytics *logic.Context
	scheduler logic.TickScheduler
	heartbeat *logic.Heartbeat
	sequencer *alarm.Sequencer

	buzzerOn   bool
	alarmShown bool // last alarm state published
	alarmState string
	rtcOK      bool
}

func runLoop(d deps, now func() time.Time, poll <-chan time.Time, sig <-chan os.Signal, resets <-chan struct{}) error {
	start := now()
	l := &loop{
		deps:       d,
		analytics:  logic.NewContext(d.cfg.Cal, d.newTripID(), start),
		heartbeat:  logic.NewHeartbeat(start),
		sequencer:  alarm.NewSequencer(d.cfg.Pattern(), d.cfg.MorseUnit),
		alarmState: alarm.Idle.String(),
		rtcOK:      true,
	}
	log.Printf("trip %s started", l.analytics.TripID)

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGUSR1 {
				l.resetTrip(now(), "SIGUSR1")
				continue
			}
			l.shutdown(now(), s)
			return nil

		case <-resets:
			l.resetTrip(now(), "HTTP")

		case <-poll:
			t := now()
			l.capture.Overflow(l.monotonic())

			if l.scheduler.Due(l.second(t)) {
				l.tick(t)
			}
			l.soundAlarm(t)
		}
	}
}

// second returns the RTC seconds field, falling back to the host clock when
// the RTC cannot be read.
func (l *loop) second(t time.Time) int {
	ts, err := l.sensors.clock.Now()
	if err != nil {
		if l.rtcOK {
			log.Printf("rtc read error, using host clock: %v", err)
			l.rtcOK = false
		}
		return t.Second()
	}
	if !l.rtcOK {
		log.Printf("rtc recovered")
		l.rtcOK = true
	}
	return ts.Second
}

// tick recomputes every metric in fixed order: motion, power, battery.
// Power therefore uses the voltage of the previous tick.
func (l *loop) tick(t time.Time) {
	period, fresh := l.capture.TakeLatestPeriod()
	if l.analytics.UpdateMotion(l.capture.Standstill(), period, fresh) && l.indicator != nil {
		l.indicator.Pulse()
	}

	if raw, err := l.sensors.current.Read(); err != nil {
		log.Printf("current read error: %v", err)
	} else {
		l.analytics.UpdatePower(raw)
	}

	if raw, err := l.sensors.voltage.ReadRaw(); err != nil {
		log.Printf("voltage read error: %v", err)
	} else {
		l.analytics.UpdateVoltage(float64(raw))
	}

	if err := l.sensors.thermo.RequestTemperature(); err != nil {
		log.Printf("temperature request error: %v", err)
	} else if c, err := l.sensors.thermo.ReadTemperature(); err != nil {
		log.Printf("temperature read error: %v", err)
	} else {
		l.analytics.UpdateTemperature(c)
	}

	m := l.analytics.Metrics(t)
	l.refresh(m)

	if m.AlarmActive != l.alarmShown {
		l.alarmShown = m.AlarmActive
		log.Printf("battery alarm: active=%t temperature=%.2fC", m.AlarmActive, m.TemperatureC)
		event := mqtt.AlarmEvent{
			Timestamp:    t,
			Active:       m.AlarmActive,
			TemperatureC: m.TemperatureC,
			MinC:         l.cfg.Cal.MinTemperatureC,
			MaxC:         l.cfg.Cal.MaxTemperatureC,
		}
		if err := l.publisher.PublishAlarm(event); err != nil {
			log.Printf("alarm publish error: %v", err)
		}
	}

	if hbData := l.heartbeat.Check(t, l.cfg.Heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v trip=%s distance=%.3fkm edges=%d ticks=%d",
			hbData.Uptime, m.TripID, m.DistanceKm, l.capture.Edges(), m.Ticks)

		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

// refresh pushes one tick's metrics to every display sink.
func (l *loop) refresh(m logic.Metrics) {
	if l.tracker != nil {
		l.tracker.Update(m, l.capture.Edges())
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}
	if l.hub != nil {
		l.hub.Broadcast(status.FormatTelemetry(m))
	}
	if err := l.publisher.PublishMetrics(m); err != nil {
		log.Printf("metrics publish error: %v", err)
	}
}

// soundAlarm advances the sequencer and writes the buzzer only on change.
func (l *loop) soundAlarm(t time.Time) {
	active := l.analytics.Battery.AlarmActive
	l.setBuzzer(l.sequencer.Poll(t, active))

	state := alarm.Idle.String()
	if active {
		state = l.sequencer.State().String()
	}
	if state != l.alarmState {
		l.alarmState = state
		if l.tracker != nil {
			l.tracker.SetAlarmState(state)
		}
	}
}

func (l *loop) setBuzzer(on bool) {
	if on == l.buzzerOn {
		return
	}
	if err := l.buzzer.Set(on); err != nil {
		log.Printf("buzzer write error: %v", err)
		return
	}
	l.buzzerOn = on
}

func (l *loop) resetTrip(t time.Time, reason string) {
	prev := l.analytics.TripID
	l.analytics.ResetTrip(l.newTripID(), t)
	log.Printf("trip reset (%s): %s -> %s", reason, prev, l.analytics.TripID)

	m := l.analytics.Metrics(t)
	if l.tracker != nil {
		l.tracker.Update(m, l.capture.Edges())
	}
	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "TRIP_RESET",
		Reason:    reason,
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish trip reset: %v", err)
	}
}

func (l *loop) shutdown(t time.Time, s os.Signal) {
	log.Printf("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	if err := l.buzzer.Set(false); err != nil {
		log.Printf("buzzer write error: %v", err)
	}
	l.buzzerOn = false

	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

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
