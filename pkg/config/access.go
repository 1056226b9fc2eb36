package config

import "sync"

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Initialize sets up the global configuration
func Initialize(cfg *Config) {
	if cfg == nil {
		cfg = Default()
	}

	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// Get returns the current configuration
func Get() *Config {
	globalMu.RLock()
	cfg := globalConfig
	globalMu.RUnlock()

	if cfg == nil {
		Initialize(nil)
		return Get()
	}
	return cfg
}

// GetBroker returns the broker configuration
func GetBroker() MqttBrokerConfig {
	return Get().Broker
}

// GetClient returns the MQTT client configuration
func GetClient() ClientConfig {
	return Get().Client
}

// GetLogging returns the logging configuration
func GetLogging() LoggingConfig {
	return Get().Logging
}
