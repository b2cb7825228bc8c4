package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

// follow runs the full request/allow exchange between follower and followee.
func follow(t *testing.T, w *world, follower, followee *Session) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, follower.RequestFollow(ctx, followee.UserID()))
	n, err := followee.ProcessIncoming(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, followee.AllowFollow(ctx, follower.UserID()))
	_, err = follower.ProcessIncoming(ctx)
	require.NoError(t, err)
	require.Zero(t, w.pending(follower.UserID()))
}

func TestFollow_RequestAndAllow(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	alice := w.session(t, "alice")
	bob := w.session(t, "bob")

	for i := 0; i < 4; i++ {
		_, err := alice.CreatePost(ctx, postInput("before", 1))
		require.NoError(t, err)
	}
	pageBefore := alice.PostManifest().CurrentPage

	require.NoError(t, bob.RequestFollow(ctx, "alice"))
	require.Len(t, bob.FollowRequests().Outgoing, 1)
	assert.Equal(t, "alice", bob.FollowRequests().Outgoing[0].FolloweeID)

	n, err := alice.ProcessIncoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, alice.FollowRequests().Incoming, 1)
	assert.Equal(t, "bob", alice.FollowRequests().Incoming[0].FollowerID)

	require.NoError(t, alice.AllowFollow(ctx, "bob"))
	assert.Empty(t, alice.FollowRequests().Incoming)
	followers, err := alice.Followers()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, followers)

	pageAfter := alice.PostManifest().CurrentPage
	assert.Equal(t, pageBefore.ObjectID, pageAfter.ObjectID)
	assert.NotEqual(t, pageBefore.Secret, pageAfter.Secret, "admission rotates the post secret")
	for _, ref := range alice.PostManifest().Pages {
		assert.Equal(t, pageAfter.Secret, ref.Page.Secret)
	}

	n, err = bob.ProcessIncoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"alice"}, bob.Following())
	assert.Empty(t, bob.FollowRequests().Outgoing)

	sealed, err := bob.FolloweePage(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, sealed.Posts, 3)

	current, err := bob.FolloweePage(ctx, "alice", 1)
	require.NoError(t, err)
	assert.Len(t, current.Posts, 1)

	latest, err := bob.FolloweePage(ctx, "alice", -1)
	require.NoError(t, err)
	assert.Equal(t, current, latest)
}

func TestFollow_TimelineMergesFollowees(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	alice := w.session(t, "alice")
	bob := w.session(t, "bob")
	follow(t, w, bob, alice)

	_, err := alice.CreatePost(ctx, postInput("alice one", 1))
	require.NoError(t, err)
	_, err = bob.CreatePost(ctx, postInput("bob one", 1))
	require.NoError(t, err)
	_, err = alice.CreatePost(ctx, postInput("alice two", 1))
	require.NoError(t, err)

	assert.Equal(t, 2, w.pending("bob"), "post broadcasts reach the follower")
	_, err = bob.ProcessIncoming(ctx)
	require.NoError(t, err)
	assert.Zero(t, w.pending("bob"))

	items, err := bob.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)

	var got []string
	for _, it := range items {
		got = append(got, it.UserID+":"+it.Post.Title)
	}
	assert.Equal(t, []string{"alice:alice two", "bob:bob one", "alice:alice one"}, got)
}

func TestFollow_SecondFollowerReceivesCommit(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	alice := w.session(t, "alice")
	bob := w.session(t, "bob")
	carol := w.session(t, "carol")

	follow(t, w, bob, alice)

	require.NoError(t, carol.RequestFollow(ctx, "alice"))
	_, err := alice.ProcessIncoming(ctx)
	require.NoError(t, err)
	require.NoError(t, alice.AllowFollow(ctx, "carol"))

	assert.Equal(t, 1, w.pending("bob"), "existing member gets the commit")
	n, err := bob.ProcessIncoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = carol.ProcessIncoming(ctx)
	require.NoError(t, err)

	_, err = alice.CreatePost(ctx, postInput("for both", 2))
	require.NoError(t, err)

	for _, s := range []*Session{bob, carol} {
		items, err := s.Timeline(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1, s.UserID())
		assert.Equal(t, "for both", items[0].Post.Title)
	}
}

func TestFollow_Errors(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	alice := w.session(t, "alice")
	bob := w.session(t, "bob")

	assert.ErrorIs(t, alice.RequestFollow(ctx, "alice"), common.ErrMalformed)
	assert.ErrorIs(t, alice.RequestFollow(ctx, ""), common.ErrMalformed)
	assert.ErrorIs(t, alice.AllowFollow(ctx, "bob"), common.ErrorNotFound)
	assert.ErrorIs(t, bob.ProcessAllowFollow(ctx, "alice", []byte("welcome")), common.ErrorNotFound)

	_, err := bob.FolloweePage(ctx, "alice", 0)
	assert.ErrorIs(t, err, ErrNotFollowing)

	follow(t, w, bob, alice)
	assert.Error(t, bob.RequestFollow(ctx, "alice"))
}

func TestFollow_DuplicateRequestsAreKept(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	alice := w.session(t, "alice")

	require.NoError(t, alice.ReceiveFollowRequest(ctx, "bob", []byte("kp1")))
	require.NoError(t, alice.ReceiveFollowRequest(ctx, "bob", []byte("kp2")))

	assert.Equal(t, []manifest.IncomingFollowRequest{
		{FollowerID: "bob", PublicPackage: []byte("kp1")},
		{FollowerID: "bob", PublicPackage: []byte("kp2")},
	}, alice.FollowRequests().Incoming)
}
