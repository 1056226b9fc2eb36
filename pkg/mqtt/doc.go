// Package mqtt wraps a paho MQTT client with fixed publish settings
// (qos, retain, topic prefix) and fans inbound messages out to handlers
// kept in a registry.Registry.
package mqtt
