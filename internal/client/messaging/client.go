// Package messaging is the client of the store-and-forward message broker
// used to deliver follow requests, group commits and welcomes.
package messaging

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/netx"
)

type Client struct {
	http *netx.Client
}

func New(c *netx.Client) *Client {
	return &Client{http: c}
}

// Send queues payload for recipients and returns the broker's message id.
func (c *Client) Send(ctx context.Context, recipients []string, payload []byte) (string, error) {
	body, err := codec.Marshal(api.SendMessageRequest{Recipients: recipients, Payload: payload})
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(ctx, http.MethodPost, "/messages", common.ContentTypeCBOR, body)
	if err != nil {
		return "", err
	}

	var out api.SendMessageResponse
	if err := codec.Unmarshal(resp.Body, &out); err != nil {
		return "", common.MalformedError(err.Error())
	}
	return out.ID, nil
}

// Receive lists messages not yet acknowledged by the caller.
func (c *Client) Receive(ctx context.Context) ([]api.Message, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, "/messages", "", nil)
	if err != nil {
		return nil, err
	}

	var out []api.Message
	if err := codec.Unmarshal(resp.Body, &out); err != nil {
		return nil, common.MalformedError(err.Error())
	}
	return out, nil
}

// Ack acknowledges ids; an unknown id fails the whole call.
func (c *Client) Ack(ctx context.Context, ids []string) error {
	body, err := codec.Marshal(api.AckRequest{IDs: ids})
	if err != nil {
		return err
	}
	_, err = c.http.Do(ctx, http.MethodPost, "/messages/ack", common.ContentTypeCBOR, body)
	return err
}
