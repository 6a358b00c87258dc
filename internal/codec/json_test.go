package codec

import (
	"encoding/json"
	"testing"

	"github.com/go-kratos/kratos/v2/encoding"
	grpcencoding "google.golang.org/grpc/encoding"
)

func TestRegistered(t *testing.T) {
	if c := encoding.GetCodec(Name); c == nil || c.Name() != Name {
		t.Fatalf("kratos codec %q not registered", Name)
	}
	if c := grpcencoding.GetCodec(Name); c == nil {
		t.Fatalf("grpc codec %q not registered", Name)
	}
}

func TestRawMessagePassthrough(t *testing.T) {
	c := jsonCodec{}
	in := json.RawMessage(`{"inventory_id":7,"file_id":"src/index.js"}`)

	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != string(in) {
		t.Errorf("Marshal = %s, want %s", data, in)
	}

	var out json.RawMessage
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(out) != string(in) {
		t.Errorf("Unmarshal = %s, want %s", out, in)
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	if err := (jsonCodec{}).Unmarshal(nil, &v); err != nil {
		t.Fatalf("Unmarshal(nil): %v", err)
	}
	if err := (jsonCodec{}).Unmarshal([]byte("  \n"), &v); err != nil {
		t.Fatalf("Unmarshal(blank): %v", err)
	}
	if err := (jsonCodec{}).Unmarshal([]byte(`{"name":"MIT"}`), &v); err != nil || v.Name != "MIT" {
		t.Fatalf("Unmarshal = %+v, %v", v, err)
	}
}
