package mqtt

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/sweeney/soil-sensor/internal/actuator"
	"github.com/sweeney/soil-sensor/internal/logic"
)

// RelayConfig configures a RealRelay.
type RelayConfig struct {
	Broker   string
	ClientID string // empty = "soil-sensor-<random>"
	Topic    string // empty = DefaultTopic
}

// publishFunc sends one message and waits for the broker.
type publishFunc func(topic string, qos byte, retained bool, payload []byte) error

// RealRelay publishes pump commands to an actual MQTT broker.
type RealRelay struct {
	mu      sync.Mutex
	client  paho.Client
	topic   string
	publish publishFunc
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	closed  bool
}

var _ actuator.Sink = (*RealRelay)(nil)

// NewRealRelay connects to the broker, retrying with exponential backoff.
func NewRealRelay(cfg RelayConfig) (*RealRelay, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "soil-sensor-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}

	will, err := FormatWillPayload(time.Now())
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetBinaryWill(topic, will, 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			log.Printf("mqtt: connected to %s", cfg.Broker)
		})

	client := paho.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	err = backoff.Retry(func() error {
		token := client.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: connect to %s failed: %v", cfg.Broker, err)
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, 4))
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	r := newRelay(topic, func(topic string, qos byte, retained bool, payload []byte) error {
		token := client.Publish(topic, qos, retained, payload)
		if !token.WaitTimeout(5 * time.Second) {
			return fmt.Errorf("publish timeout")
		}
		return token.Error()
	}, time.Now)
	r.client = client
	return r, nil
}

func newRelay(topic string, publish publishFunc, now func() time.Time) *RealRelay {
	return &RealRelay{
		topic:   topic,
		publish: publish,
		now:     now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "mqtt-relay",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("%s: breaker %s -> %s", name, from, to)
			},
		}),
	}
}

// SetIndicator is a no-op: the relay has no indicator.
func (r *RealRelay) SetIndicator(on bool) error {
	return nil
}

// Apply publishes the requested pump state. PumpNoChange publishes nothing.
// While the breaker is open, publishes fail fast instead of waiting on the broker.
func (r *RealRelay) Apply(cmd logic.Command) error {
	on, changes := actuator.PumpState(cmd.Pump)
	if !changes {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("relay closed")
	}
	return r.send(cmd.Pump, on)
}

// Close switches the relay off and disconnects from the broker.
func (r *RealRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.send(logic.PumpDeactivate, false)
	if r.client != nil {
		r.client.Disconnect(1000) // 1 second timeout
	}
	return err
}

// IsConnected reports whether the broker connection is up.
func (r *RealRelay) IsConnected() bool {
	return r.client != nil && r.client.IsConnected()
}

func (r *RealRelay) send(action logic.PumpAction, on bool) error {
	payload, err := FormatPayload(action, on, r.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1, retained: a relay that reconnects picks up the latest state
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.publish(r.topic, 1, true, payload)
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
