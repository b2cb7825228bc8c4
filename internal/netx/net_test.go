package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

func writeErrorBody(t *testing.T, w http.ResponseWriter, status int, body api.ErrorBody) {
	t.Helper()
	data, err := codec.Marshal(body)
	require.NoError(t, err)
	w.Header().Set("Content-Type", common.ContentTypeCBOR)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func TestDo_SendsBearerAndBody(t *testing.T) {
	var gotAuth, gotCT, gotMethod string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get(common.AuthorizationHeaderName)
		gotCT = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := New(ts.URL+"/", "tok", time.Second, 0)
	resp, err := c.Do(context.Background(), http.MethodPut, "/content/batch", common.ContentTypeOctetStream, []byte("frame"))

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, common.ContentTypeOctetStream, gotCT)
	assert.Equal(t, []byte("frame"), gotBody)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second, 5*time.Second, WithInitialInterval(time.Millisecond))
	resp, err := c.Do(context.Background(), http.MethodGet, "/messages", "", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_GivesUpWithInternalError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeErrorBody(t, w, http.StatusInternalServerError, api.ErrorBody{Error: "internal error"})
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second, 0)
	_, err := c.Do(context.Background(), http.MethodGet, "/messages", "", nil)

	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeErrorBody(t, w, http.StatusPreconditionFailed, api.ErrorBody{ObjectID: "obj", Version: 7})
	}))
	defer ts.Close()

	c := New(ts.URL, "", time.Second, 5*time.Second, WithInitialInterval(time.Millisecond))
	_, err := c.Do(context.Background(), http.MethodPut, "/content/batch", "", nil)

	var stale *common.StaleError
	require.True(t, errors.As(err, &stale))
	assert.Equal(t, uint64(7), stale.Version)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()

	c := New(ts.URL, "", time.Second, 0)
	_, err := c.Do(context.Background(), http.MethodGet, "/", "", nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorInternal)
}

func TestDo_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(ts.URL, "", time.Second, time.Minute)
	_, err := c.Do(ctx, http.MethodGet, "/", "", nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeError(t *testing.T) {
	body := func(b api.ErrorBody) []byte {
		data, err := codec.Marshal(b)
		require.NoError(t, err)
		return data
	}

	assert.ErrorIs(t, DecodeError(http.StatusUnauthorized, nil), common.ErrorUnauthorized)

	var forbidden *common.ForbiddenError
	require.True(t, errors.As(DecodeError(http.StatusForbidden, body(api.ErrorBody{ObjectID: "o"})), &forbidden))
	assert.Equal(t, "o", forbidden.ObjectID)

	assert.ErrorIs(t, DecodeError(http.StatusBadRequest, body(api.ErrorBody{Error: "truncated id"})), common.ErrMalformed)

	var missing *common.MissingError
	require.True(t, errors.As(DecodeError(http.StatusNotFound, body(api.ErrorBody{Error: "Missing objectIds: a,b"})), &missing))
	assert.Equal(t, []string{"a", "b"}, missing.ObjectIDs)

	err := DecodeError(http.StatusNotFound, body(api.ErrorBody{Error: "not found: m1"}))
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.False(t, errors.As(err, &missing))

	assert.EqualError(t, DecodeError(http.StatusTeapot, nil), "unexpected status 418")
}
