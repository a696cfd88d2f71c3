package wire

import "encoding/json"

// Codec is the pluggable JSON encoder/decoder extension point.
// The engine never depends on a concrete JSON implementation; callers may
// substitute a faster or stricter codec.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

// stdCodec is the default Codec, backed by encoding/json. It exists only
// as a convenience default — the engine itself never imports encoding/json
// outside this fallback.
type stdCodec struct{}

func (stdCodec) Encode(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (stdCodec) Decode(data []byte, v interface{}) error   { return json.Unmarshal(data, v) }

// DefaultCodec is the Codec used when a caller does not supply one.
var DefaultCodec Codec = stdCodec{}

// BodyData is the tagged variant replacing the original's dynamically
// typed response payload (DESIGN NOTES): exactly one of Json,
// Text, Bytes, or none is set.
type BodyData struct {
	kind  bodyKind
	json  interface{}
	text  string
	bytes []byte
}

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyJSON
	bodyText
	bodyBytes
)

// JSON wraps a value (typically a map or slice) to be JSON-encoded.
func JSON(v interface{}) BodyData { return BodyData{kind: bodyJSON, json: v} }

// Text wraps an HTML/plain string body.
func Text(s string) BodyData { return BodyData{kind: bodyText, text: s} }

// Bytes wraps an opaque binary body.
func Bytes(b []byte) BodyData { return BodyData{kind: bodyBytes, bytes: b} }

// Empty represents no body at all.
func Empty() BodyData { return BodyData{kind: bodyEmpty} }

// EncodeBody picks a Content-Type and byte payload for data:
// a JSON value encodes via codec to "application/json"; a string becomes
// "text/html; charset=utf-8"; raw bytes become
// "application/octet-stream"; the empty variant becomes an empty
// "text/plain" body.
func EncodeBody(data BodyData, codec Codec) (contentType string, body []byte, err error) {
	if codec == nil {
		codec = DefaultCodec
	}
	switch data.kind {
	case bodyJSON:
		encoded, err := codec.Encode(data.json)
		if err != nil {
			return "", nil, err
		}
		return "application/json", encoded, nil
	case bodyText:
		return "text/html; charset=utf-8", []byte(data.text), nil
	case bodyBytes:
		return "application/octet-stream", data.bytes, nil
	default:
		return "text/plain", nil, nil
	}
}
