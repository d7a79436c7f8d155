// Package codec centralizes the JSON encoding of archive metadata and decode reports.
//
// Codecs are selected by a stable name so command-line output can be produced by
// either encoder. Indent wraps any codec for human-readable output.
package codec

import (
	"encoding/json"

	gojson "github.com/goccy/go-json"
)

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Stdlib encodes with encoding/json.
type Stdlib struct{}

func (Stdlib) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Stdlib) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Stdlib) Name() string                       { return "json" }

func (Stdlib) marshalIndent(v any, indent string) ([]byte, error) {
	return json.MarshalIndent(v, "", indent)
}

// GoJSON encodes with github.com/goccy/go-json. It is the default.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

func (GoJSON) marshalIndent(v any, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, "", indent)
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}

var builtin = []Codec{Stdlib{}, GoJSON{}}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	for _, c := range builtin {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// Names lists the built-in codec names.
func Names() []string {
	names := make([]string, len(builtin))
	for i, c := range builtin {
		names[i] = c.Name()
	}
	return names
}

type indenter interface {
	marshalIndent(v any, indent string) ([]byte, error)
}

type indented struct {
	Codec
	indent string
}

// Indent returns a codec whose Marshal output is indented with indent.
// Codecs without indentation support are returned unchanged.
func Indent(c Codec, indent string) Codec {
	if _, ok := c.(indenter); !ok || indent == "" {
		return c
	}
	return indented{Codec: c, indent: indent}
}

func (c indented) Marshal(v any) ([]byte, error) {
	return c.Codec.(indenter).marshalIndent(v, c.indent)
}
