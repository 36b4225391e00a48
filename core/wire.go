package core

import (
	"encoding/json"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Flight actions.
const (
	ActionTables = "tables"
	ActionState  = "state"
)

// Schema metadata keys carrying a query's outcome over Flight.
const (
	MetaError    = "error"
	MetaDuration = "duration"
)

// RequestIDKey is the gRPC metadata key clients tag calls with.
const RequestIDKey = "x-request-id"

// MarshalStruct encodes v as a protobuf Struct through its JSON form.
func MarshalStruct(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

// UnmarshalStruct is the inverse of MarshalStruct.
func UnmarshalStruct(b []byte, v any) error {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return err
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
