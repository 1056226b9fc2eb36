package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/logging"
)

// HexU16 is a 16 bit value written as "0x1234". It reads back from a
// number, a decimal string or a 0x/0X prefixed hex string.
type HexU16 uint16

// ParseHexU16 parses a decimal or 0x prefixed hexadecimal string
func ParseHexU16(s string) (HexU16, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		if base == 16 {
			return 0, errors.Newf(errors.ErrConfigParse, "invalid hex string %q", s)
		}
		return 0, errors.Newf(errors.ErrConfigParse, "invalid number string %q", s)
	}
	return HexU16(v), nil
}

// String returns the 0x%04X form
func (h HexU16) String() string {
	return fmt.Sprintf("0x%04X", uint16(h))
}

// MarshalJSON writes the value as a hex string
func (h HexU16) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(h.String())), nil
}

// UnmarshalJSON accepts a number or a string
func (h *HexU16) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseHexU16(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// Duration is a time.Duration written as "3s"
type Duration time.Duration

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// IPEndpointConfig is a bind or connect address
type IPEndpointConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
	Port uint16 `koanf:"port" json:"port,omitempty"`
}

// Address returns host:port
func (e IPEndpointConfig) Address() string {
	return net.JoinHostPort(e.Addr, strconv.Itoa(int(e.Port)))
}

// UsbEndpointConfig identifies a USB device
type UsbEndpointConfig struct {
	VID    HexU16 `koanf:"vid" json:"vid,omitempty"`
	PID    HexU16 `koanf:"pid" json:"pid,omitempty"`
	Serial string `koanf:"serial" json:"serial,omitempty"`
}

// SerialPortEndpointConfig identifies a serial port by name or by USB ids
type SerialPortEndpointConfig struct {
	Name     string             `koanf:"name" json:"name,omitempty"`
	USB      *UsbEndpointConfig `koanf:"usb" json:"usb,omitempty"`
	BaudRate uint32             `koanf:"baud_rate" json:"baud_rate,omitempty"`
}

// MqttBrokerConfig lists the listeners of a broker. A nil endpoint is disabled.
type MqttBrokerConfig struct {
	TCP       *IPEndpointConfig `koanf:"tcp" json:"tcp,omitempty"`
	WebSocket *IPEndpointConfig `koanf:"websocket" json:"websocket,omitempty"`
}

// DefaultBrokerConfig listens on 127.0.0.1:1883 over TCP only
func DefaultBrokerConfig() MqttBrokerConfig {
	return MqttBrokerConfig{
		TCP: &IPEndpointConfig{Addr: "127.0.0.1", Port: 1883},
	}
}

// MeduseBrokerConfig is the broker layout used by the Meduse platform
func MeduseBrokerConfig() MqttBrokerConfig {
	return MqttBrokerConfig{
		TCP:       &IPEndpointConfig{Addr: "12.0.0.1", Port: 1883},
		WebSocket: &IPEndpointConfig{Addr: "0.0.0.0", Port: 8083},
	}
}

// ClientConfig holds MQTT client settings
type ClientConfig struct {
	Host      string   `koanf:"host" json:"host"`
	Port      uint16   `koanf:"port" json:"port"`
	KeepAlive Duration `koanf:"keep_alive" json:"keep_alive"`
	QoS       byte     `koanf:"qos" json:"qos"`
	Retain    bool     `koanf:"retain" json:"retain"`
	Prefix    string   `koanf:"prefix" json:"prefix"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level         string   `koanf:"level" json:"level"`
	Filters       []string `koanf:"filters" json:"filters"`
	DisplayTarget bool     `koanf:"display_target" json:"display_target"`
}

// Config is the main Panduza configuration file
type Config struct {
	Broker  MqttBrokerConfig `koanf:"broker" json:"broker"`
	Client  ClientConfig     `koanf:"client" json:"client"`
	Logging LoggingConfig    `koanf:"logging" json:"logging"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Broker: DefaultBrokerConfig(),
		Client: ClientConfig{
			Host:      "localhost",
			Port:      1883,
			KeepAlive: Duration(3 * time.Second),
			QoS:       0,
			Retain:    false,
			Prefix:    "pza",
		},
		Logging: LoggingConfig{
			Level:         "info",
			Filters:       []string{"broker=off"},
			DisplayTarget: false,
		},
	}
}

// Validate checks values the type system cannot
func (c *Config) Validate() error {
	if c.Client.QoS > 2 {
		return errors.Newf(errors.ErrConfigParse, "client qos must be 0, 1 or 2, got %d", c.Client.QoS)
	}
	if c.Client.Port == 0 {
		return errors.New(errors.ErrConfigParse, "client port must be set")
	}
	for name, ep := range map[string]*IPEndpointConfig{"tcp": c.Broker.TCP, "websocket": c.Broker.WebSocket} {
		if ep != nil && ep.Port == 0 {
			return errors.Newf(errors.ErrConfigParse, "broker %s endpoint needs a port", name)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.ErrConfigParse, "invalid logging level")
	}
	return nil
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	out := *c
	if c.Broker.TCP != nil {
		tcp := *c.Broker.TCP
		out.Broker.TCP = &tcp
	}
	if c.Broker.WebSocket != nil {
		ws := *c.Broker.WebSocket
		out.Broker.WebSocket = &ws
	}
	if c.Logging.Filters != nil {
		out.Logging.Filters = append([]string(nil), c.Logging.Filters...)
	}
	return &out
}

// LoggerBuilder turns the logging section into a logging.Builder
func (l LoggingConfig) LoggerBuilder() (*logging.Builder, error) {
	lvl, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	b := logging.NewBuilder().WithLevel(lvl).DisplayTarget(l.DisplayTarget)
	for _, f := range l.Filters {
		b.AddFilter(f)
	}
	return b, nil
}
