package config

import (
	"github.com/bytedance/sonic"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// JSON5 implements a koanf parser for JSON5 documents. Output is plain
// indented JSON, which every JSON5 reader accepts.
type JSON5 struct{}

// JSON5Parser returns a JSON5 koanf parser
func JSON5Parser() *JSON5 {
	return &JSON5{}
}

// Unmarshal parses JSON5 bytes into a nested map
func (p *JSON5) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json5.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// Marshal writes a nested map as indented JSON
func (p *JSON5) Marshal(o map[string]interface{}) ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(o, "", "  ")
}
