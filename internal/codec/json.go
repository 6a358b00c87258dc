// Package codec provides the JSON codec shared by the HTTP and gRPC
// transports. Importing it replaces kratos' protojson-based "json" codec and
// registers the same codec as a gRPC content-subtype.
package codec

import (
	"bytes"
	"encoding/json"

	"github.com/go-kratos/kratos/v2/encoding"
	grpcencoding "google.golang.org/grpc/encoding"
)

const Name = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
	grpcencoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok && len(raw) > 0 {
		return raw, nil
	}
	return json.Marshal(v)
}

// Unmarshal treats an empty body as an empty object so that GET requests and
// payload-less RPCs decode to zero values.
func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := v.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return Name }
