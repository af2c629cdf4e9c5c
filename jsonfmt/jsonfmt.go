// Package jsonfmt implements the JSON Format codec.
package jsonfmt

import (
	json "github.com/goccy/go-json"

	"github.com/roach88/stow"
)

// Format encodes component values as JSON.
type Format struct{}

func (Format) Name() string { return "json" }

// Serialize encodes v. Values JSON cannot represent fail with a
// SerializationError.
func (Format) Serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &stow.SerializationError{Format: "json", Err: err}
	}
	return data, nil
}

// Deserialize decodes data into v. Malformed payloads and payloads
// whose shape does not match v fail with a SerializationError.
func (Format) Deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &stow.SerializationError{Format: "json", Err: err}
	}
	return nil
}
