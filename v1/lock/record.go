package lock

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// Record is the envelope written for every X and Y value. ExpiresAt is the
// absolute expiry in epoch milliseconds.
type Record struct {
	ExpiresAt int64  `json:"expiresAt"`
	Value     string `json:"value"`
}

// Codec defines methods for encoding and decoding records.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec using encoding/json. It produces the
// {"expiresAt": ..., "value": ...} shape other clients expect and is the
// default.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GobCodec implements Codec using encoding/gob. Only clients configured with
// the same codec can share a store.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	b := bytes.NewBuffer(data)
	dec := gob.NewDecoder(b)
	return dec.Decode(v)
}
