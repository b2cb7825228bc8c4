// Package storage is the client of the content server: batched object
// upload and fetch, read-access grants and avatars.
package storage

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/netx"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

type Client struct {
	http *netx.Client
}

func New(c *netx.Client) *Client {
	return &Client{http: c}
}

// BatchPut uploads records as one all-or-nothing batch. Conflicts come back
// as *common.StaleError or *common.ForbiddenError.
func (c *Client) BatchPut(ctx context.Context, records []wire.Record) error {
	frame, err := wire.EncodeBatch(records)
	if err != nil {
		return err
	}
	_, err = c.http.Do(ctx, http.MethodPut, "/content/batch", common.ContentTypeOctetStream, frame)
	return err
}

// BatchGet fetches ids. The result is keyed by common.EncodeID of each id.
// Unreadable or unknown ids fail the call with *common.MissingError.
func (c *Client) BatchGet(ctx context.Context, ids [][]byte) (map[string]api.Object, error) {
	body, err := codec.Marshal(ids)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, http.MethodPost, "/content/batch", common.ContentTypeCBOR, body)
	if err != nil {
		return nil, err
	}

	out := map[string]api.Object{}
	if err := codec.Unmarshal(resp.Body, &out); err != nil {
		return nil, common.MalformedError(err.Error())
	}
	return out, nil
}

// Grant lets followerID read the caller's objects.
func (c *Client) Grant(ctx context.Context, followerID string) error {
	_, err := c.http.Do(ctx, http.MethodPut, "/follows/"+url.PathEscape(followerID), "", nil)
	return err
}

func (c *Client) Revoke(ctx context.Context, followerID string) error {
	_, err := c.http.Do(ctx, http.MethodDelete, "/follows/"+url.PathEscape(followerID), "", nil)
	return err
}

func (c *Client) PutAvatar(ctx context.Context, contentType string, image []byte) error {
	_, err := c.http.Do(ctx, http.MethodPut, "/avatar", contentType, image)
	return err
}

func (c *Client) GetAvatar(ctx context.Context, userID string) (string, []byte, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, "/avatar/"+url.PathEscape(userID), "", nil)
	if err != nil {
		return "", nil, err
	}
	return resp.Header.Get("Content-Type"), resp.Body, nil
}
