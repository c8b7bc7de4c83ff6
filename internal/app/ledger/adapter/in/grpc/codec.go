package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName content-subtype，請求以 application/grpc+json 傳送
const codecName = "json"

// jsonCodec 以 JSON 編碼訊息，訊息型別不需要 protobuf 產生的程式碼
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
