package handler

import "encoding/json"

// Codec is the wire codec for the service. Install it on the server with
// grpc.ForceServerCodec and on clients with grpc.ForceCodec.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }
