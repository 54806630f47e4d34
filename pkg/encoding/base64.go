// Package encoding provides JSON-serializable byte framings for the
// gateway wire protocol.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// StdBase64Data is a byte slice carried as a standard-base64 JSON
// string. Audio payloads cross the gateway in this form.
type StdBase64Data []byte

// MarshalJSON implements json.Marshaler.
func (b StdBase64Data) MarshalJSON() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b))+2)
	out[0] = '"'
	base64.StdEncoding.Encode(out[1:len(out)-1], b)
	out[len(out)-1] = '"'
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves the
// slice untouched.
func (b *StdBase64Data) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("encoding: base64: empty input")
	}
	if data[0] == 'n' { // null
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("encoding: base64: not a JSON string: %s", data)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(data[1 : len(data)-1]))
	if err != nil {
		return fmt.Errorf("encoding: base64: %w", err)
	}
	*b = decoded
	return nil
}

// String returns the base64 text form.
func (b StdBase64Data) String() string {
	return base64.StdEncoding.EncodeToString(b)
}
