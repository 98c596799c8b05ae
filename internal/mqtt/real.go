package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/filament-dryer/internal/logic"
)

const (
	// DefaultBufferSize is how many messages are kept while disconnected.
	DefaultBufferSize = 256

	// publishTimeout bounds how long a broker acknowledgement is awaited
	// before the message goes back into the buffer.
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Topics     Topics
	BufferSize int
}

// pahoClient is the subset of paho.Client the publisher uses.
type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on (re)connect.
type RealPublisher struct {
	client  pahoClient
	topics  Topics
	logger  *zap.Logger
	timeout time.Duration

	mu            sync.Mutex
	buffer        *ringBuffer
	connectedOnce bool
}

// NewRealPublisher creates a publisher and starts connecting in the background.
// It does not wait for the broker: the first connection is retried until it
// succeeds, and anything published before then is buffered.
func NewRealPublisher(opts Options, logger *zap.Logger) *RealPublisher {
	logger = logger.With(zap.String("component", "mqtt"), zap.String("broker", opts.Broker))
	if errLog, err := zap.NewStdLogAt(logger, zap.ErrorLevel); err == nil {
		paho.ERROR = errLog
		paho.CRITICAL = errLog
	}

	p := newPublisher(nil, opts.Topics, opts.BufferSize, logger)

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("connection lost", zap.Error(err))
		})

	withWill(clientOpts, opts.Topics.System, FormatSystemPayload, logger)

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()
	return p
}

// withWill registers the retained SHUTDOWN last will, so subscribers see the
// daemon vanish. A will that cannot be formatted is logged and left out.
func withWill(clientOpts *paho.ClientOptions, topic string, format func(SystemEvent) ([]byte, error), logger *zap.Logger) *paho.ClientOptions {
	will, err := format(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		logger.Warn("format last will, connecting without one", zap.Error(err))
		return clientOpts
	}
	return clientOpts.SetBinaryWill(topic, will, 1, true)
}

func newPublisher(client pahoClient, topics Topics, bufferSize int, logger *zap.Logger) *RealPublisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RealPublisher{
		client:  client,
		topics:  topics,
		logger:  logger,
		timeout: publishTimeout,
		buffer:  newRingBuffer(bufferSize, logger),
	}
}

// Publish sends a dryer event to the events or telemetry topic.
func (p *RealPublisher) Publish(event logic.Event, cycleID string) error {
	payload, err := FormatPayload(event, cycleID)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	topic, qos := p.topics.For(event)
	p.publish(bufferedMsg{topic: topic, payload: payload, qos: qos})
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once): shutdown and heartbeat should be delivered
	p.publish(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	if n := p.Buffered(); n > 0 {
		p.logger.Warn("discarding buffered messages", zap.Int("count", n))
	}
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}

// publish hands msg to paho and returns without waiting for the broker.
// The control loop calls it every tick, so delivery is confirmed in the
// background and a failed or unacknowledged message is buffered for replay.
func (p *RealPublisher) publish(msg bufferedMsg) {
	if !p.client.IsConnectionOpen() {
		p.enqueue(msg)
		return
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	go p.confirm(msg, token)
}

func (p *RealPublisher) confirm(msg bufferedMsg, token paho.Token) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			p.logger.Warn("publish failed, buffering", zap.String("topic", msg.topic), zap.Error(err))
			p.enqueue(msg)
		}
	case <-timer.C:
		p.logger.Warn("publish timed out, buffering", zap.String("topic", msg.topic), zap.Duration("timeout", p.timeout))
		p.enqueue(msg)
	}
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	p.buffer.push(msg)
	p.mu.Unlock()
}

// onConnect replays buffered messages and announces reconnection.
func (p *RealPublisher) onConnect() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	p.mu.Unlock()

	p.logger.Info("connected", zap.Bool("reconnect", reconnect), zap.Int("replay", len(pending)))

	if reconnect {
		if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			p.logger.Warn("publish reconnected event", zap.Error(err))
		}
	}
	for _, msg := range pending {
		p.publish(msg)
	}
}
