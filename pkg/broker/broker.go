// Package broker runs an embedded MQTT broker for local benches.
package broker

import (
	"io"
	"log/slog"
	"sync"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/panduza/pza/pkg/config"
	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/logging"
	"github.com/rs/zerolog"
)

// Listener ids
const (
	TCPListenerID       = "v4-1"
	WebSocketListenerID = "ws-1"
)

// Router limits
const (
	MaxClients     = 20480
	MaxPacketSize  = 2000480
	MaxInflight    = 20480
	MaxPendingSend = 200
)

// Option configures Start
type Option func(*options)

type options struct {
	logger *slog.Logger
	hooks  []mqtt.Hook
}

// WithSlogLogger replaces the logger handed to the broker
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithHook adds a hook in front of the allow-all auth hook
func WithHook(hook mqtt.Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

// Broker is a running embedded broker
type Broker struct {
	server    *mqtt.Server
	listeners []listeners.Listener

	closeOnce sync.Once
	closeErr  error
}

// Start starts a broker with one listener per configured endpoint.
// At least one endpoint must be set.
func Start(cfg config.MqttBrokerConfig, opts ...Option) (*Broker, error) {
	if cfg.TCP == nil && cfg.WebSocket == nil {
		return nil, errors.New(errors.ErrBrokerStart, "no listener configured")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}

	logger := logging.GetLogger(logging.ComponentBroker)
	logger.Info().Msg("----- SERVICE : START BROKER -----")

	caps := mqtt.NewDefaultServerCapabilities()
	caps.MaximumClients = MaxClients
	caps.MaximumPacketSize = MaxPacketSize
	caps.MaximumInflight = MaxInflight
	caps.MaximumClientWritesPending = MaxPendingSend

	server := mqtt.New(&mqtt.Options{
		Capabilities: caps,
		InlineClient: true,
		Logger:       o.logger,
	})

	for _, hook := range o.hooks {
		if err := server.AddHook(hook, nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrBrokerStart, "failed to add hook")
		}
	}
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrBrokerStart, "failed to add auth hook")
	}

	b := &Broker{server: server}

	if cfg.TCP != nil {
		l := listeners.NewTCP(listeners.Config{ID: TCPListenerID, Address: cfg.TCP.Address()})
		if err := b.addListener(l); err != nil {
			return nil, err
		}
	}
	if cfg.WebSocket != nil {
		l := listeners.NewWebsocket(listeners.Config{ID: WebSocketListenerID, Address: cfg.WebSocket.Address()})
		if err := b.addListener(l); err != nil {
			return nil, err
		}
	}

	if err := server.Serve(); err != nil {
		_ = b.Close()
		return nil, errors.Wrap(err, errors.ErrBrokerStart, "failed to serve")
	}

	for _, l := range b.listeners {
		logger.Info().Str("listener", l.ID()).Str("protocol", l.Protocol()).Str("address", l.Address()).Msg("Broker listening")
	}
	return b, nil
}

func (b *Broker) addListener(l listeners.Listener) error {
	if err := b.server.AddListener(l); err != nil {
		_ = b.Close()
		return errors.Wrapf(err, errors.ErrBrokerStart, "listener %s failed to listen on %s", l.ID(), l.Address())
	}
	b.listeners = append(b.listeners, l)
	return nil
}

// Addrs returns listener id to bound address
func (b *Broker) Addrs() map[string]string {
	addrs := make(map[string]string, len(b.listeners))
	for _, l := range b.listeners {
		addrs[l.ID()] = l.Address()
	}
	return addrs
}

// Server exposes the underlying mochi server, mostly for inline publishing
func (b *Broker) Server() *mqtt.Server {
	return b.server
}

// Close stops every listener and disconnects clients
func (b *Broker) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.server.Close()
		logger := logging.GetLogger(logging.ComponentBroker)
		logger.Info().Msg("Broker stopped")
	})
	return b.closeErr
}

// defaultLogger writes broker records through the "broker" component
// logger, or nowhere when that component is filtered off
func defaultLogger() *slog.Logger {
	if logging.IsSilenced(logging.ComponentBroker) {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logger := logging.GetLogger(logging.ComponentBroker)
	return slog.New(slog.NewTextHandler(logger, &slog.HandlerOptions{
		Level: slogLevel(logger.GetLevel()),
	}))
}

func slogLevel(lvl zerolog.Level) slog.Level {
	switch {
	case lvl <= zerolog.DebugLevel:
		return slog.LevelDebug
	case lvl == zerolog.InfoLevel:
		return slog.LevelInfo
	case lvl == zerolog.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
