package streaming

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrUnknownCodec = errors.New("unknown stream encoding")

// Codec encodes outgoing frames and decodes server replies. Both codecs use
// the json struct tags, so a frame carries the same keys either way.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary WebSocket messages.
	Binary() bool
	Encode(msgType string, payload any) ([]byte, error)
	Decode(data []byte, v any) error
}

type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName maps the storage.websocket.encoding setting to a codec. An
// empty name means JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(frame{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", msgType, err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return "msgpack" }

func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msgType string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(frame{Type: msgType, Payload: payload}); err != nil {
		return nil, fmt.Errorf("msgpack %s frame: %w", msgType, err)
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
