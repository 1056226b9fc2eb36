package config

import (
	_ "embed"
	"errors"
)

//go:embed embedded/config.json5
var templateConfig []byte

// TemplateContent returns the annotated JSON5 configuration written by
// "pza config init". It parses to the same values as Default.
func TemplateContent() string {
	return string(templateConfig)
}

// rawBytesProvider implements koanf provider for raw bytes
type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}
