package mqtt

import (
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/panduza/pza/pkg/ident"
)

// Message is an inbound publication as handed to handlers
type Message struct {
	ID         string
	Topic      string
	Payload    []byte
	QoS        byte
	Retained   bool
	ReceivedAt time.Time
}

// Clone gives each handler its own payload buffer
func (m Message) Clone() Message {
	out := m
	if m.Payload != nil {
		out.Payload = append([]byte(nil), m.Payload...)
	}
	return out
}

// newMessage copies the paho message, whose buffer is not ours to keep
func newMessage(msg paho.Message) Message {
	return Message{
		ID:         ident.NewID(),
		Topic:      msg.Topic(),
		Payload:    append([]byte(nil), msg.Payload()...),
		QoS:        msg.Qos(),
		Retained:   msg.Retained(),
		ReceivedAt: time.Now(),
	}
}
