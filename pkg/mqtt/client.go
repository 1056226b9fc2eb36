package mqtt

import (
	"context"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/logging"
	"github.com/panduza/pza/pkg/registry"
)

// Conn is the part of paho.Client the wrapper relies on
type Conn interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// disconnectQuiesce is how long, in milliseconds, paho may spend
// flushing pending work on Disconnect
const disconnectQuiesce = 250

// Client publishes with fixed qos, retain and prefix and dispatches
// every inbound message to the registered handlers
type Client struct {
	conn   Conn
	qos    byte
	retain bool
	prefix string

	handlers *registry.Registry[Message]

	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient wraps an existing connection
func NewClient(conn Conn, qos byte, retain bool, prefix string, opts ...registry.Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		qos:      qos,
		retain:   retain,
		prefix:   prefix,
		handlers: registry.New[Message](opts...),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// InitClient builds a paho client for opts with a unique client id.
// The client is not connected yet.
func InitClient(opts ClientOptions, regOpts ...registry.Option) *Client {
	c := NewClient(nil, opts.QoS, opts.Retain, opts.Prefix, regOpts...)

	clientID := ClientID(opts.Module)
	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.BrokerURL()).
		SetClientID(clientID).
		SetKeepAlive(opts.KeepAlive).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetDefaultPublishHandler(c.handleMessage).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger := logging.GetLogger(logging.ComponentMQTT)
			logger.Warn().Err(err).Str("client_id", clientID).Msg("Connection lost")
		})

	c.conn = paho.NewClient(pahoOpts)

	logger := logging.GetLogger(logging.ComponentMQTT)
	logger.Debug().
		Str("client_id", clientID).
		Str("broker", opts.BrokerURL()).
		Dur("keep_alive", opts.KeepAlive).
		Msg("MQTT client initialized")
	return c
}

// Connect connects to the broker and waits for the acknowledgement
func (c *Client) Connect(ctx context.Context) error {
	if err := wait(ctx, c.conn.Connect()); err != nil {
		return errors.Wrap(err, errors.ErrMqttConnect, "failed to connect to broker")
	}
	return nil
}

// IsConnected reports whether the connection is up
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// SubscribeToAll subscribes to every topic with the client qos. It stops
// at the first failure.
func (c *Client) SubscribeToAll(ctx context.Context, topics []string) error {
	logger := logging.GetLogger(logging.ComponentMQTT)

	for _, topic := range topics {
		if err := wait(ctx, c.conn.Subscribe(topic, c.qos, c.handleMessage)); err != nil {
			return errors.Wrapf(err, errors.ErrMqttSubscribe, "failed to subscribe to %s", topic)
		}
		logger.Debug().Str("topic", topic).Uint8("qos", c.qos).Msg("Subscribed")
	}
	return nil
}

// Publish sends payload to topic with the client qos and retain flag
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := wait(ctx, c.conn.Publish(topic, c.qos, c.retain, payload)); err != nil {
		return errors.Wrapf(err, errors.ErrMqttPublish, "failed to publish to %s", topic)
	}
	return nil
}

// TopicWithPrefix returns "<prefix>/<topic>"
func (c *Client) TopicWithPrefix(topic string) string {
	return c.prefix + "/" + topic
}

// OnMessage registers a handler for every inbound message
func (c *Client) OnMessage(handler registry.Callback[Message]) registry.ID {
	return c.handlers.Add(handler)
}

// RemoveHandler unregisters a handler
func (c *Client) RemoveHandler(id registry.ID) bool {
	return c.handlers.Remove(id)
}

// Handlers exposes the handler registry
func (c *Client) Handlers() *registry.Registry[Message] {
	return c.handlers
}

// Disconnect closes the connection and cancels the context handed to
// handlers that are still running
func (c *Client) Disconnect() {
	c.cancel()

	if c.conn.IsConnected() {
		c.conn.Disconnect(disconnectQuiesce)
	}
}

// handleMessage is the paho message handler. It blocks paho's delivery
// goroutine until every handler is done.
func (c *Client) handleMessage(_ paho.Client, msg paho.Message) {
	m := newMessage(msg)

	logger := logging.GetLogger(logging.ComponentMQTT)
	logger.Trace().
		Str("id", m.ID).
		Str("topic", m.Topic).
		Int("size", len(m.Payload)).
		Int("handlers", c.handlers.Count()).
		Msg("Message received")

	c.handlers.ExecuteAll(c.ctx, m)
}

// wait blocks until the token completes or ctx is done
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
