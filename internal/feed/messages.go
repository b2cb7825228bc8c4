package feed

import (
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// Kinds of messages sent point to point over the message channel.
const (
	KindFollowRequest = "FollowRequest"
	KindWelcome       = "Welcome"
	KindGroupMessage  = "GroupMessage"
)

// Kinds of application messages carried inside a group.
const (
	KindPostMessage = "PostMessage"
	KindInteraction = "Interaction"
)

type envelope struct {
	Kind string           `cbor:"kind"`
	Body codec.RawMessage `cbor:"body"`
}

type FollowRequestMessage struct {
	KeyPackage []byte `cbor:"keyPackage"`
}

type WelcomeMessage struct {
	Welcome []byte `cbor:"welcome"`
}

type GroupMessage struct {
	GroupID []byte `cbor:"groupId"`
	Message []byte `cbor:"message"`
}

type PostMessage struct {
	Post manifest.PostMeta `cbor:"post"`
}

type InteractionMessage struct {
	Interaction manifest.Interaction `cbor:"interaction"`
	PosterID    string               `cbor:"posterId"`
}

func encodeEnvelope(kind string, body any) ([]byte, error) {
	raw, err := codec.Marshal(body)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(envelope{Kind: kind, Body: raw})
}

// EncodePublic wraps a FollowRequestMessage, WelcomeMessage or GroupMessage.
func EncodePublic(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case FollowRequestMessage:
		return encodeEnvelope(KindFollowRequest, m)
	case WelcomeMessage:
		return encodeEnvelope(KindWelcome, m)
	case GroupMessage:
		return encodeEnvelope(KindGroupMessage, m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// DecodePublic returns one of FollowRequestMessage, WelcomeMessage or
// GroupMessage.
func DecodePublic(data []byte) (any, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, common.MalformedError(fmt.Sprintf("decode message: %v", err))
	}

	switch env.Kind {
	case KindFollowRequest:
		return decodeBody[FollowRequestMessage](env)
	case KindWelcome:
		return decodeBody[WelcomeMessage](env)
	case KindGroupMessage:
		return decodeBody[GroupMessage](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Kind)
	}
}

// EncodeApplication wraps a PostMessage or InteractionMessage.
func EncodeApplication(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case PostMessage:
		return encodeEnvelope(KindPostMessage, m)
	case InteractionMessage:
		return encodeEnvelope(KindInteraction, m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
}

// DecodeApplication returns a PostMessage or an InteractionMessage.
func DecodeApplication(data []byte) (any, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, common.MalformedError(fmt.Sprintf("decode application message: %v", err))
	}

	switch env.Kind {
	case KindPostMessage:
		return decodeBody[PostMessage](env)
	case KindInteraction:
		return decodeBody[InteractionMessage](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Kind)
	}
}

func decodeBody[T any](env envelope) (any, error) {
	var v T
	if err := codec.Unmarshal(env.Body, &v); err != nil {
		return nil, common.MalformedError(fmt.Sprintf("decode %s: %v", env.Kind, err))
	}
	return v, nil
}
