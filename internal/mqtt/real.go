package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/ev-telemetry/internal/logic"
)

// BufferCapacity is the number of messages held while disconnected; five
// minutes of per-second metrics plus alarm and system events.
const BufferCapacity = 320

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
// Until the replay has emptied the buffer, new messages queue behind it so
// the broker sees them in publish order.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	replaying bool
	connects  int
}

func newPublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, buf: newRingBuffer(BufferCapacity)}
}

// NewRealPublisher creates a publisher connected to the given broker. The
// broker's last-will message on TopicSystem reports OFFLINE.
func NewRealPublisher(o Options, now time.Time) (*RealPublisher, error) {
	will, err := FormatSystemPayload(SystemEvent{Timestamp: now, Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := newPublisher(nil)
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect keeps retrying in the background; messages buffer meanwhile.
		log.Printf("mqtt: broker %s not reachable yet, buffering", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.replaying = true
	p.connects++
	reconnect := p.connects > 1
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	}
	p.replay(c)
}

// replay drains the buffer until it is empty, then lets publishes through.
// Messages buffered during a replay round go out in the next round.
func (p *RealPublisher) replay(c paho.Client) {
	for {
		p.mu.Lock()
		if !p.connected {
			p.replaying = false
			p.mu.Unlock()
			return
		}
		msgs, dropped := p.buf.drainAll()
		if len(msgs) == 0 {
			p.replaying = false
		}
		p.mu.Unlock()

		if dropped > 0 {
			log.Printf("mqtt: buffer overflowed, %d oldest messages dropped", dropped)
		}
		if len(msgs) == 0 {
			return
		}
		log.Printf("mqtt: replaying %d buffered messages", len(msgs))
		for _, m := range msgs {
			token := c.Publish(m.topic, m.qos, m.retained, m.payload)
			if !token.WaitTimeout(5 * time.Second) {
				log.Printf("mqtt: replay to %s timed out", m.topic)
				continue
			}
			if err := token.Error(); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
			}
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// publish sends payload or, when the connection is down, buffers it.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected || p.replaying || !p.client.IsConnectionOpen() {
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishMetrics sends one tick's metrics (QoS 0, not retained).
func (p *RealPublisher) PublishMetrics(m logic.Metrics) error {
	payload, err := FormatMetricsPayload(m)
	if err != nil {
		return fmt.Errorf("format metrics payload: %w", err)
	}
	return p.publish(TopicMetrics, 0, false, payload)
}

// PublishAlarm sends an alarm transition (QoS 1, retained so that a new
// subscriber sees the current alarm state).
func (p *RealPublisher) PublishAlarm(event AlarmEvent) error {
	payload, err := FormatAlarmPayload(event)
	if err != nil {
		return fmt.Errorf("format alarm payload: %w", err)
	}
	return p.publish(TopicAlarm, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
