package cluster

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered with grpc's encoding package and selected
// via grpc.ForceCodec (DialOptions) and grpc.ForceServerCodec (ServerOptions), giving every Job and
// PartialResult a plain JSON wire form instead of requiring generated
// protobuf bindings for these internal-only messages.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
