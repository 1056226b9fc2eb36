package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/panduza/pza/pkg/config"
	"github.com/panduza/pza/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientOptions(t *testing.T) {
	opts := DefaultClientOptions("power-supply")
	assert.Equal(t, "power-supply", opts.Module)
	assert.Equal(t, "localhost", opts.Host)
	assert.Equal(t, uint16(1883), opts.Port)
	assert.Equal(t, 3*time.Second, opts.KeepAlive)
	assert.Equal(t, "tcp://localhost:1883", opts.BrokerURL())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Client
	cfg.QoS = 1
	cfg.Retain = true

	opts := OptionsFromConfig("bench", cfg)
	assert.Equal(t, "bench", opts.Module)
	assert.Equal(t, "localhost", opts.Host)
	assert.Equal(t, 3*time.Second, opts.KeepAlive)
	assert.Equal(t, byte(1), opts.QoS)
	assert.True(t, opts.Retain)
	assert.Equal(t, "pza", opts.Prefix)
}

func TestClientID(t *testing.T) {
	id := ClientID("scope")
	require.True(t, strings.HasPrefix(id, "scope-"))
	suffix := strings.TrimPrefix(id, "scope-")
	assert.Len(t, suffix, ClientIDSuffixLength)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, suffix)

	assert.NotEqual(t, ClientID("scope"), ClientID("scope"))
}

func TestInitClient(t *testing.T) {
	c := InitClient(DefaultClientOptions("test"))
	require.NotNil(t, c)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 0, c.Handlers().Count())
}

func TestTopicWithPrefix(t *testing.T) {
	c := NewClient(&fakeConn{}, 0, false, "pza")
	assert.Equal(t, "pza/psu/voltage", c.TopicWithPrefix("psu/voltage"))
}

func TestConnect(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn, 0, false, "pza")
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())

	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, conn.disconnects)

	// already disconnected
	c.Disconnect()
	assert.Equal(t, 1, conn.disconnects)
}

func TestConnect_Error(t *testing.T) {
	c := NewClient(&fakeConn{connectErr: fmt.Errorf("refused")}, 0, false, "pza")
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMqttConnect))
	assert.Contains(t, err.Error(), "refused")
}

func TestPublish(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn, 1, true, "pza")

	require.NoError(t, c.Publish(context.Background(), c.TopicWithPrefix("psu/enable"), []byte("true")))
	require.Len(t, conn.published, 1)
	assert.Equal(t, published{topic: "pza/psu/enable", qos: 1, retained: true, payload: []byte("true")}, conn.published[0])
}

func TestPublish_Errors(t *testing.T) {
	t.Run("token error", func(t *testing.T) {
		conn := &fakeConn{publishTok: doneToken(fmt.Errorf("not connected"))}
		c := NewClient(conn, 0, false, "pza")

		err := c.Publish(context.Background(), "t", nil)
		assert.True(t, errors.IsErrorCode(err, errors.ErrMqttPublish))
	})

	t.Run("context cancelled", func(t *testing.T) {
		conn := &fakeConn{publishTok: pendingToken()}
		c := NewClient(conn, 0, false, "pza")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := c.Publish(ctx, "t", nil)
		assert.True(t, errors.IsErrorCode(err, errors.ErrMqttPublish))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSubscribeToAll(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn, 2, false, "pza")

	topics := []string{"pza/a/#", "pza/b/+/status"}
	require.NoError(t, c.SubscribeToAll(context.Background(), topics))
	assert.Equal(t, topics, conn.subscribed)
}

func TestSubscribeToAll_StopsAtFirstFailure(t *testing.T) {
	conn := &fakeConn{
		subscribeFn: func(topic string) paho.Token {
			if topic == "bad" {
				return doneToken(fmt.Errorf("not authorized"))
			}
			return nil
		},
	}
	c := NewClient(conn, 0, false, "pza")

	err := c.SubscribeToAll(context.Background(), []string{"one", "bad", "three"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMqttSubscribe))
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"one"}, conn.subscribed)
}

func TestInboundDispatch(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn, 0, false, "pza")
	require.NoError(t, c.SubscribeToAll(context.Background(), []string{"pza/#"}))

	var (
		mu       sync.Mutex
		received = map[string][]Message{}
	)
	record := func(name string) func(context.Context, Message) {
		return func(ctx context.Context, m Message) {
			m.Payload[0] = 'X'
			mu.Lock()
			received[name] = append(received[name], m)
			mu.Unlock()
		}
	}
	c.OnMessage(record("a"))
	second := c.OnMessage(record("b"))

	payload := []byte("on")
	conn.deliver("pza/psu/state", payload)

	assert.Equal(t, "on", string(payload))
	require.Len(t, received["a"], 1)
	require.Len(t, received["b"], 1)

	a, b := received["a"][0], received["b"][0]
	assert.Equal(t, "pza/psu/state", a.Topic)
	assert.Equal(t, byte(1), a.QoS)
	assert.True(t, a.Retained)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, a.ID, 26)
	assert.False(t, a.ReceivedAt.IsZero())

	assert.True(t, c.RemoveHandler(second))
	assert.False(t, c.RemoveHandler(second))
	conn.deliver("pza/psu/state", []byte("off"))
	assert.Len(t, received["a"], 2)
	assert.Len(t, received["b"], 1)
}

func TestDisconnectCancelsHandlerContext(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient(conn, 0, false, "pza")
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SubscribeToAll(context.Background(), []string{"#"}))

	started := make(chan struct{})
	c.OnMessage(func(ctx context.Context, m Message) {
		close(started)
		<-ctx.Done()
	})

	done := make(chan struct{})
	go func() {
		conn.deliver("t", nil)
		close(done)
	}()

	<-started
	c.Disconnect()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not observe cancellation")
	}
}

func TestMessageClone(t *testing.T) {
	m := Message{Topic: "t", Payload: []byte("abc")}
	clone := m.Clone()
	clone.Payload[0] = 'z'
	assert.Equal(t, "abc", string(m.Payload))
	assert.Equal(t, "t", clone.Topic)

	empty := Message{}.Clone()
	assert.Nil(t, empty.Payload)
}
