package packet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the wire message: a type tag plus a tag-dependent payload.
// Optional fields ride alongside depending on the type.
type Envelope struct {
	Type              string          `json:"type"`
	Data              json.RawMessage `json:"data"`
	Language          string          `json:"language,omitempty"`
	Secret            string          `json:"secret,omitempty"`
	ChatDecryptionKey string          `json:"chatDecryptionKey,omitempty"`
}

// Decode failure classes. The caller maps each to a distinct close code
// instead of crashing — a malformed frame must never throw past Decode.
var (
	ErrEmpty         = errors.New("empty message")
	ErrMalformed     = errors.New("malformed message")
	ErrMissingFields = errors.New("missing type or data")
)

// Websocket close codes, one per protocol failure class.
const (
	CloseEmptyMessage  = 4001
	CloseOversized     = 4002
	CloseMalformed     = 4003
	CloseMissingFields = 4004
	CloseUnknownType   = 4005
)

// CloseCodeFor maps a decode error to its close code. Unknown errors fall
// back to the malformed class.
func CloseCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrEmpty):
		return CloseEmptyMessage
	case errors.Is(err, ErrMissingFields):
		return CloseMissingFields
	default:
		return CloseMalformed
	}
}

// Decode parses a UTF-8 JSON frame into an Envelope. Failures are reported
// as one of the distinguished errors above.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if len(bytes.TrimSpace(raw)) == 0 {
		return env, ErrEmpty
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" || len(env.Data) == 0 {
		return env, ErrMissingFields
	}
	return env, nil
}

// Encode serialises an Envelope to a UTF-8 byte buffer.
func Encode(env Envelope) ([]byte, error) {
	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return json.Marshal(env)
}

// New builds an outbound Envelope with a marshalled payload. Marshal errors
// only occur for non-JSON-representable values, which would be a programming
// bug — they are folded into a null payload rather than propagated.
func New(typ string, data any) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Envelope{Type: typ, Data: raw}
}

// Payload unmarshals the envelope data into a typed payload struct.
func Payload[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
