package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/panduza/pza/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_CreatesMissingFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json5")

	cfg, err := Load(path, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	// the generated file loads back to the same values
	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), again)
}

func TestLoad_WithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")

	cfg, err := Load(path, WithEnvPrefix(""), WithoutCreate())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_JSON5File(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "config.json5", `
// bench setup
{
  broker: {
    tcp: { port: 1884 },           // addr stays the default
    websocket: { addr: "0.0.0.0", port: 8083, },
  },
  client: { qos: 1, keep_alive: "10s", prefix: "bench" },
  logging: { level: "debug", filters: ["mqtt=trace"] },
}
`)

	cfg, err := Load(path, WithEnvPrefix(""))
	require.NoError(t, err)

	require.NotNil(t, cfg.Broker.TCP)
	assert.Equal(t, "127.0.0.1", cfg.Broker.TCP.Addr)
	assert.Equal(t, uint16(1884), cfg.Broker.TCP.Port)
	require.NotNil(t, cfg.Broker.WebSocket)
	assert.Equal(t, "0.0.0.0:8083", cfg.Broker.WebSocket.Address())

	assert.Equal(t, byte(1), cfg.Client.QoS)
	assert.Equal(t, 10*time.Second, cfg.Client.KeepAlive.Std())
	assert.Equal(t, "bench", cfg.Client.Prefix)
	assert.Equal(t, "localhost", cfg.Client.Host)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"mqtt=trace"}, cfg.Logging.Filters)
}

func TestLoad_NullDisablesListener(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "config.json", `{"broker": {"tcp": null}}`)

	cfg, err := Load(path, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.Nil(t, cfg.Broker.TCP)
}

func TestLoad_TOMLAndYAML(t *testing.T) {
	dir := t.TempDir()

	tomlPath := writeTestFile(t, dir, "config.toml", `
[client]
host = "bench.local"
port = 1885
keep_alive = 5
`)
	cfg, err := Load(tomlPath, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.Equal(t, "bench.local", cfg.Client.Host)
	assert.Equal(t, uint16(1885), cfg.Client.Port)
	assert.Equal(t, 5*time.Second, cfg.Client.KeepAlive.Std())

	yamlPath := writeTestFile(t, dir, "config.yaml", `
client:
  retain: true
logging:
  level: warn
`)
	cfg, err = Load(yamlPath, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.True(t, cfg.Client.Retain)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "config.json5", `{client: {port: 1884}}`)

	t.Setenv("PZA_CLIENT__PORT", "1999")
	t.Setenv("PZA_CLIENT__KEEP_ALIVE", "1m")
	t.Setenv("PZA_BROKER__TCP__ADDR", "0.0.0.0")
	t.Setenv("PZA_LOGGING__FILTERS", "broker=off,mqtt=debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(1999), cfg.Client.Port)
	assert.Equal(t, time.Minute, cfg.Client.KeepAlive.Std())
	assert.Equal(t, "0.0.0.0", cfg.Broker.TCP.Addr)
	assert.Equal(t, []string{"broker=off", "mqtt=debug"}, cfg.Logging.Filters)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("invalid json5", func(t *testing.T) {
		path := writeTestFile(t, dir, "broken.json5", `{client: {port: }`)
		cfg, err := Load(path, WithEnvPrefix(""))
		assert.Nil(t, cfg)
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "config.ini"), WithEnvPrefix(""))
		assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	})

	t.Run("validation", func(t *testing.T) {
		path := writeTestFile(t, dir, "qos.json5", `{client: {qos: 3}}`)
		_, err := Load(path, WithEnvPrefix(""))
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
		assert.Contains(t, err.Error(), "qos")
	})

	t.Run("bad log level", func(t *testing.T) {
		path := writeTestFile(t, dir, "level.json5", `{logging: {level: "loud"}}`)
		_, err := Load(path, WithEnvPrefix(""))
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	})
}

func TestTemplateMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, WriteTemplate(path))

	cfg, err := LoadWithDefaults[Config](path, nil, WithEnvPrefix(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json5")
	require.NoError(t, WriteTemplate(path))

	cfg, err := Load(path, WithEnvPrefix(""), WithoutCreate())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestJSON5Parser_CommentBeforeClosingBrace(t *testing.T) {
	// the parser rejects a comment between a trailing comma and the
	// closing brace, so the embedded template must not contain one
	_, err := JSON5Parser().Unmarshal([]byte("{a: 1, // c\n}"))
	assert.Error(t, err)

	parsed, err := JSON5Parser().Unmarshal([]byte("{// c\n a: 1,\n}"))
	require.NoError(t, err)
	assert.Equal(t, float64(1), parsed["a"])
}

type deviceConfig struct {
	Serial SerialPortEndpointConfig `koanf:"serial" json:"serial"`
}

func TestLoadWithDefaults_HexIdentifiers(t *testing.T) {
	defaults := &deviceConfig{
		Serial: SerialPortEndpointConfig{
			BaudRate: 115200,
			USB:      &UsbEndpointConfig{VID: 0x16C0, PID: 0x05E1},
		},
	}

	t.Run("missing file is written with hex strings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "device.json5")

		got, err := LoadWithDefaults(path, defaults, WithEnvPrefix(""))
		require.NoError(t, err)
		assert.Equal(t, defaults, got)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"vid": "0x16C0"`)
		assert.Contains(t, string(content), `"pid": "0x05E1"`)
	})

	t.Run("numbers and strings are accepted", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "device.json5", `{
  serial: { name: "/dev/ttyACM0", usb: { vid: 1155, pid: "0X5740", serial: "ABC" } },
}`)

		got, err := LoadWithDefaults(path, defaults, WithEnvPrefix(""))
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", got.Serial.Name)
		assert.Equal(t, HexU16(0x0483), got.Serial.USB.VID)
		assert.Equal(t, HexU16(0x5740), got.Serial.USB.PID)
		assert.Equal(t, "ABC", got.Serial.USB.Serial)
		assert.Equal(t, uint32(115200), got.Serial.BaudRate)
	})

	t.Run("out of range is rejected", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "device.json5", `{serial: {usb: {vid: 70000}}}`)
		_, err := LoadWithDefaults(path, defaults, WithEnvPrefix(""))
		assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
	})
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "broker.json")
	require.NoError(t, Write(path, MeduseBrokerConfig()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"addr": "12.0.0.1"`)
	assert.Contains(t, string(content), `"websocket"`)

	got, err := LoadWithDefaults[MqttBrokerConfig](path, nil, WithEnvPrefix(""))
	require.NoError(t, err)
	want := MeduseBrokerConfig()
	assert.Equal(t, &want, got)
}

func TestWrite_BlockedDirectory(t *testing.T) {
	blocker := writeTestFile(t, t.TempDir(), "file", "x")
	err := Write(filepath.Join(blocker, "config.json"), Default())
	assert.True(t, errors.IsErrorCode(err, errors.ErrDirCreate))
}
