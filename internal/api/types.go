// Package api holds the CBOR bodies exchanged between the content server
// and its clients.
package api

import "time"

// Object is one resolved entry of a batch fetch.
type Object struct {
	Body    []byte `cbor:"body"`
	Nonce   []byte `cbor:"nonce"`
	Version uint64 `cbor:"version"`
}

// ErrorBody is returned with every non-2xx status. ObjectID and Version are
// set for 403 and 412 responses.
type ErrorBody struct {
	Error    string `cbor:"error,omitempty"`
	ObjectID string `cbor:"objectId,omitempty"`
	Version  uint64 `cbor:"version,omitempty"`
}

type SendMessageRequest struct {
	Recipients []string `cbor:"recipients"`
	Payload    []byte   `cbor:"payload"`
}

type SendMessageResponse struct {
	ID string `cbor:"id"`
}

type Message struct {
	ID        string    `cbor:"id"`
	SenderID  string    `cbor:"senderId"`
	Payload   []byte    `cbor:"payload"`
	CreatedAt time.Time `cbor:"createdAt"`
}

type AckRequest struct {
	IDs []string `cbor:"ids"`
}
