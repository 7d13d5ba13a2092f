package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fiberplane/fp-sub000/internal/notebook"
)

// MessageType is the "type" tag of a realtime message.
type MessageType string

// Client to server.
const (
	TypeAuthenticate        MessageType = "Authenticate"
	TypeSubscribe           MessageType = "Subscribe"
	TypeUnsubscribe         MessageType = "Unsubscribe"
	TypeApplyOperation      MessageType = "ApplyOperation"
	TypeApplyOperationBatch MessageType = "ApplyOperationBatch"
)

// Server to client. ApplyOperation and ApplyOperationBatch are shared.
const (
	TypeAck               MessageType = "Ack"
	TypeErr               MessageType = "Err"
	TypeRejected          MessageType = "Rejected"
	TypeSubscriberAdded   MessageType = "SubscriberAdded"
	TypeSubscriberRemoved MessageType = "SubscriberRemoved"
	TypeSubscriberFocus   MessageType = "SubscriberChangedFocus"
	TypeDebugResponse     MessageType = "DebugResponse"
	TypeMention           MessageType = "Mention"
)

// AuthenticateMessage must be the first message on a connection.
type AuthenticateMessage struct {
	OpID  string `json:"opId,omitempty"`
	Token string `json:"token"`
}

// SubscribeMessage subscribes to a notebook's operations. A nil Revision
// subscribes from the current revision.
type SubscribeMessage struct {
	OpID       string  `json:"opId,omitempty"`
	NotebookID string  `json:"notebookId"`
	Revision   *uint32 `json:"revision"`
}

// UnsubscribeMessage stops receiving a notebook's operations.
type UnsubscribeMessage struct {
	OpID       string `json:"opId,omitempty"`
	NotebookID string `json:"notebookId"`
}

// ApplyOperationMessage carries one operation at the given revision.
type ApplyOperationMessage struct {
	OpID       string             `json:"opId,omitempty"`
	NotebookID string             `json:"notebookId"`
	Operation  notebook.Operation `json:"-"`
	Revision   uint32             `json:"revision"`
}

// ApplyOperationBatchMessage carries several operations that share one revision.
type ApplyOperationBatchMessage struct {
	OpID       string               `json:"opId,omitempty"`
	NotebookID string               `json:"notebookId"`
	Operations []notebook.Operation `json:"-"`
	Revision   uint32               `json:"revision"`
}

// MarshalJSON encodes the operation with its type tag.
func (m ApplyOperationMessage) MarshalJSON() ([]byte, error) {
	type plain ApplyOperationMessage
	data, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	op, err := notebook.MarshalOperation(m.Operation)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(data, "operation", op)
}

// MarshalJSON encodes every operation with its type tag.
func (m ApplyOperationBatchMessage) MarshalJSON() ([]byte, error) {
	type plain ApplyOperationBatchMessage
	data, err := json.Marshal(plain(m))
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetRawBytes(data, "operations", []byte("[]"))
	if err != nil {
		return nil, err
	}
	for _, operation := range m.Operations {
		op, err := notebook.MarshalOperation(operation)
		if err != nil {
			return nil, err
		}
		if data, err = sjson.SetRawBytes(data, "operations.-1", op); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// encodeClientMessage tags payload with its message type.
func encodeClientMessage(kind MessageType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return sjson.SetBytes(data, "type", string(kind))
}

// ServerMessage is a decoded server to client message. Only the fields that
// belong to Type are set.
type ServerMessage struct {
	Type       MessageType
	OpID       string
	NotebookID string
	Revision   uint32

	// ApplyOperation / ApplyOperationBatch
	Operations []notebook.Operation

	// Err and Rejected
	Error  string
	Reason string

	Raw []byte
}

// decodeServerMessage reads the type tag with gjson and decodes the payload
// fields relevant to that type.
func decodeServerMessage(data []byte) (ServerMessage, error) {
	if !gjson.ValidBytes(data) {
		return ServerMessage{}, fmt.Errorf("malformed server message")
	}
	root := gjson.ParseBytes(data)
	msg := ServerMessage{
		Type:       MessageType(root.Get("type").String()),
		OpID:       root.Get("opId").String(),
		NotebookID: root.Get("notebookId").String(),
		Revision:   uint32(root.Get("revision").Uint()),
		Raw:        data,
	}

	switch msg.Type {
	case "":
		return ServerMessage{}, fmt.Errorf("server message without type")
	case TypeApplyOperation:
		op, err := notebook.UnmarshalOperation([]byte(root.Get("operation").Raw))
		if err != nil {
			return ServerMessage{}, err
		}
		msg.Operations = []notebook.Operation{op}
	case TypeApplyOperationBatch:
		for _, raw := range root.Get("operations").Array() {
			op, err := notebook.UnmarshalOperation([]byte(raw.Raw))
			if err != nil {
				return ServerMessage{}, err
			}
			msg.Operations = append(msg.Operations, op)
		}
	case TypeErr:
		msg.Error = root.Get("error").String()
	case TypeRejected:
		msg.Reason = root.Get("reason").Raw
	}
	return msg, nil
}
