package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

func TestPublicMessages(t *testing.T) {
	tests := []struct {
		name string
		msg  any
	}{
		{"follow request", FollowRequestMessage{KeyPackage: []byte("kp")}},
		{"welcome", WelcomeMessage{Welcome: []byte("w")}},
		{"group message", GroupMessage{GroupID: []byte{1, 2}, Message: []byte("m")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodePublic(tt.msg)
			require.NoError(t, err)

			got, err := DecodePublic(data)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)

			_, err = DecodeApplication(data)
			assert.ErrorIs(t, err, ErrUnknownMessage)
		})
	}
}

func TestApplicationMessages(t *testing.T) {
	in := InteractionMessage{
		Interaction: manifest.Interaction{Kind: manifest.KindLike, PostID: "p", Author: "bob", Date: 3, Signature: []byte("s")},
		PosterID:    "alice",
	}
	data, err := EncodeApplication(in)
	require.NoError(t, err)

	got, err := DecodeApplication(data)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	_, err = DecodePublic(data)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestUnknownMessages(t *testing.T) {
	_, err := EncodePublic(PostMessage{})
	assert.ErrorIs(t, err, ErrUnknownMessage)
	_, err = EncodeApplication(WelcomeMessage{})
	assert.ErrorIs(t, err, ErrUnknownMessage)

	data, err := codec.Marshal(envelope{Kind: "Like", Body: []byte{0xa0}})
	require.NoError(t, err)
	_, err = DecodePublic(data)
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodePublic([]byte{0xff})
	assert.Error(t, err)
}
