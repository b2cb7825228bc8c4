package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/group/ratchet"
	"github.com/dmitrijs2005/feedkeeper/internal/wire"
)

type storedObject struct {
	owner   string
	body    []byte
	nonce   []byte
	version uint64
}

// world is an in-memory content server and message broker shared by the
// sessions of a test.
type world struct {
	mu      sync.Mutex
	objects map[string]storedObject
	grants  map[string]map[string]bool
	inboxes map[string][]api.Message
	seq     int
	clock   time.Time
	puts    int
}

func newWorld() *world {
	return &world{
		objects: map[string]storedObject{},
		grants:  map[string]map[string]bool{},
		inboxes: map[string][]api.Message{},
		clock:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (w *world) now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = w.clock.Add(time.Minute)
	return w.clock
}

// session creates and bootstraps a session for userID with a fresh master key.
func (w *world) session(t *testing.T, userID string) *Session {
	t.Helper()
	return w.sessionWithKey(t, userID, common.GenerateRandByteArray(32), nil)
}

func (w *world) sessionWithKey(t *testing.T, userID string, masterKey []byte, signing []byte) *Session {
	t.Helper()

	if signing == nil {
		_, priv, err := cryptox.GenerateSigningKey()
		require.NoError(t, err)
		signing = priv
	}

	s := NewSession(Config{
		UserID:     userID,
		MasterKey:  masterKey,
		SigningKey: signing,
		Group:      ratchet.New(),
		Store:      &userStore{w: w, user: userID},
		Messenger:  &userInbox{w: w, user: userID},
		Access:     &userStore{w: w, user: userID},
		PostLimit:  3,
	})
	s.now = w.now

	require.NoError(t, s.Bootstrap(context.Background()))
	return s
}

func (w *world) pending(userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inboxes[userID])
}

func (w *world) deliver(from, to string, payload []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.inboxes[to] = append(w.inboxes[to], api.Message{
		ID:       fmt.Sprintf("m%d", w.seq),
		SenderID: from,
		Payload:  payload,
	})
}

type userStore struct {
	w    *world
	user string
}

func (u *userStore) BatchPut(_ context.Context, records []wire.Record) error {
	w := u.w
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, r := range records {
		id := common.EncodeID(r.ObjectID)
		cur, ok := w.objects[id]
		switch {
		case !ok && r.ExpectedVersion == 0:
		case ok && cur.owner != u.user:
			return &common.ForbiddenError{ObjectID: id}
		case !ok:
			return &common.StaleError{ObjectID: id, Version: 0}
		case cur.version != r.ExpectedVersion:
			return &common.StaleError{ObjectID: id, Version: cur.version}
		}
	}

	for _, r := range records {
		id := common.EncodeID(r.ObjectID)
		cur := w.objects[id]
		w.objects[id] = storedObject{owner: u.user, body: r.Blob, nonce: r.Nonce, version: cur.version + 1}
	}
	w.puts++
	return nil
}

func (u *userStore) BatchGet(_ context.Context, ids [][]byte) (map[string]api.Object, error) {
	w := u.w
	w.mu.Lock()
	defer w.mu.Unlock()

	out := map[string]api.Object{}
	var missing []string
	for _, raw := range ids {
		id := common.EncodeID(raw)
		o, ok := w.objects[id]
		if !ok || (o.owner != u.user && !w.grants[o.owner][u.user]) {
			missing = append(missing, id)
			continue
		}
		out[id] = api.Object{Body: o.body, Nonce: o.nonce, Version: o.version}
	}
	if len(missing) > 0 {
		return nil, &common.MissingError{ObjectIDs: missing}
	}
	return out, nil
}

func (u *userStore) Grant(_ context.Context, followerID string) error {
	w := u.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.grants[u.user] == nil {
		w.grants[u.user] = map[string]bool{}
	}
	w.grants[u.user][followerID] = true
	return nil
}

type userInbox struct {
	w    *world
	user string
}

func (u *userInbox) Send(_ context.Context, recipients []string, payload []byte) (string, error) {
	for _, r := range recipients {
		u.w.deliver(u.user, r, payload)
	}
	return "sent", nil
}

func (u *userInbox) Receive(context.Context) ([]api.Message, error) {
	u.w.mu.Lock()
	defer u.w.mu.Unlock()
	return slices.Clone(u.w.inboxes[u.user]), nil
}

func (u *userInbox) Ack(_ context.Context, ids []string) error {
	u.w.mu.Lock()
	defer u.w.mu.Unlock()
	u.w.inboxes[u.user] = slices.DeleteFunc(u.w.inboxes[u.user], func(m api.Message) bool {
		return slices.Contains(ids, m.ID)
	})
	return nil
}
