package stow

// Format is a pluggable codec between a typed value and an opaque byte
// payload. A stored payload is always read back with the same Format
// that wrote it; no cross-format compatibility is required.
//
// Both directions are fallible: Serialize fails with a
// SerializationError when the value cannot be encoded, Deserialize
// when the payload is malformed or does not match the expected type's
// shape. Neither is ever retried by the engine.
type Format interface {
	// Name identifies the codec in errors and logs.
	Name() string

	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}
