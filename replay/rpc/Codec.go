// Package rpc serves a replay table over gRPC and implements a client
// of that service. Messages are encoded as JSON.
package rpc

import (
	"encoding/json"
)

// codecName is the content subtype of the service
const codecName = "json"

// codec implements the gRPC encoding.Codec interface with JSON
type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return codecName
}
