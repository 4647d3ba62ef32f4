// Package jsonutil provides thin wrappers around sonic for
// performance-sensitive JSON encoding and decoding tasks.
package jsonutil

import (
	"io"

	"github.com/bytedance/sonic"
)

// Marshal serialises the provided value into a compact JSON byte slice.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent serialises the provided value with the supplied prefix and
// indentation, mirroring encoding/json.MarshalIndent.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return sonic.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses JSON data into the provided destination.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Encode streams the JSON representation of v into the writer.
func Encode(w io.Writer, v any) error {
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

// Decode reads a single JSON value from the reader into the destination.
func Decode(r io.Reader, v any) error {
	return sonic.ConfigDefault.NewDecoder(r).Decode(v)
}

// Valid reports whether data is syntactically valid JSON.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}
