package mqtt

import (
	"fmt"
	"time"

	"github.com/panduza/pza/pkg/config"
	"github.com/panduza/pza/pkg/ident"
)

// ClientIDSuffixLength is the number of random characters appended to
// the module name to build a client id
const ClientIDSuffixLength = 5

// ClientOptions describes one MQTT client
type ClientOptions struct {
	Module    string
	Host      string
	Port      uint16
	KeepAlive time.Duration
	QoS       byte
	Retain    bool
	Prefix    string
}

// DefaultClientOptions connects to localhost:1883 with a 3s keep alive
func DefaultClientOptions(module string) ClientOptions {
	return ClientOptions{
		Module:    module,
		Host:      "localhost",
		Port:      1883,
		KeepAlive: 3 * time.Second,
	}
}

// OptionsFromConfig builds client options from the client section of
// the configuration file
func OptionsFromConfig(module string, cfg config.ClientConfig) ClientOptions {
	return ClientOptions{
		Module:    module,
		Host:      cfg.Host,
		Port:      cfg.Port,
		KeepAlive: cfg.KeepAlive.Std(),
		QoS:       cfg.QoS,
		Retain:    cfg.Retain,
		Prefix:    cfg.Prefix,
	}
}

// BrokerURL returns the tcp:// url paho connects to
func (o ClientOptions) BrokerURL() string {
	return fmt.Sprintf("tcp://%s", config.IPEndpointConfig{Addr: o.Host, Port: o.Port}.Address())
}

// ClientID returns module followed by a dash and a random suffix, so
// several instances of one module can share a broker
func ClientID(module string) string {
	return module + "-" + ident.RandomString(ClientIDSuffixLength)
}
