package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/filex"
	"github.com/dmitrijs2005/feedkeeper/internal/manifest"
)

func oneUser(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: " + usage)
	}
	return args[0], nil
}

func userAndPost(args []string, usage string) (string, string, error) {
	if len(args) != 2 {
		return "", "", errors.New("usage: " + usage)
	}
	return args[0], args[1], nil
}

// Follow sends a follow request to the named user.
func (a *App) Follow(ctx context.Context, args []string) error {
	user, err := oneUser(args, "follow <user>")
	if err != nil {
		return err
	}
	if err := a.withSession(func(s feedSession) error { return s.RequestFollow(ctx, user) }); err != nil {
		return err
	}
	printlnFn("Follow request sent to", user)
	return nil
}

// Allow admits a user whose follow request is pending.
func (a *App) Allow(ctx context.Context, args []string) error {
	user, err := oneUser(args, "allow <user>")
	if err != nil {
		return err
	}
	if err := a.withSession(func(s feedSession) error { return s.AllowFollow(ctx, user) }); err != nil {
		return err
	}
	printlnFn(user, "now follows you")
	return nil
}

// Requests lists pending follow requests in both directions.
func (a *App) Requests(ctx context.Context) error {
	var reqs manifest.FollowRequests
	if err := a.withSession(func(s feedSession) error { reqs = s.FollowRequests(); return nil }); err != nil {
		return err
	}
	if len(reqs.Incoming) == 0 && len(reqs.Outgoing) == 0 {
		printlnFn("No pending requests")
		return nil
	}
	for _, r := range reqs.Incoming {
		printlnFn("from", r.FollowerID, "(allow with: allow "+r.FollowerID+")")
	}
	for _, r := range reqs.Outgoing {
		printlnFn("to  ", r.FolloweeID, "(waiting)")
	}
	return nil
}

// Followers prints who follows this user and whom this user follows.
func (a *App) Followers(ctx context.Context) error {
	var followers, following []string
	err := a.withSession(func(s feedSession) error {
		var err error
		followers, err = s.Followers()
		following = s.Following()
		return err
	})
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Followers (%d): %v", len(followers), followers))
	printlnFn(fmt.Sprintf("Following (%d): %v", len(following), following))
	return nil
}

// Inbox processes incoming messages without waiting for the poller.
func (a *App) Inbox(ctx context.Context) error {
	var n int
	err := a.withSession(func(s feedSession) error {
		var err error
		n, err = s.ProcessIncoming(ctx)
		return err
	})
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Processed %d message(s)", n))
	return nil
}

// Like likes a post of the given owner.
func (a *App) Like(ctx context.Context, args []string) error {
	user, post, err := userAndPost(args, "like <user> <post>")
	if err != nil {
		return err
	}
	if err := a.withSession(func(s feedSession) error { return s.LikePost(ctx, user, post) }); err != nil {
		return err
	}
	printlnFn("Liked")
	return nil
}

// Unlike withdraws a like.
func (a *App) Unlike(ctx context.Context, args []string) error {
	user, post, err := userAndPost(args, "unlike <user> <post>")
	if err != nil {
		return err
	}
	if err := a.withSession(func(s feedSession) error { return s.UnlikePost(ctx, user, post) }); err != nil {
		return err
	}
	printlnFn("Like removed")
	return nil
}

// Comment prompts for a multi-line comment and adds it to a post.
func (a *App) Comment(ctx context.Context, args []string) error {
	user, post, err := userAndPost(args, "comment <user> <post>")
	if err != nil {
		return err
	}
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	text, err := a.ask().Text("Comment on " + post)
	if err != nil {
		return err
	}
	if text == "" {
		return errors.New("comment must not be empty")
	}
	if err := a.withSession(func(s feedSession) error { return s.CommentPost(ctx, user, post, text) }); err != nil {
		return err
	}
	printlnFn("Commented")
	return nil
}

// Avatar uploads the own avatar ("avatar set <file>") or saves another
// user's under the media directory ("avatar get <user>").
func (a *App) Avatar(ctx context.Context, args []string) error {
	if len(args) != 2 || (args[0] != "set" && args[0] != "get") {
		return errors.New("usage: avatar set <file> | avatar get <user>")
	}
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}

	if args[0] == "set" {
		ct, data, err := filex.ReadAttachment(args[1])
		if err != nil {
			return err
		}
		if err := a.avatars.PutAvatar(ctx, ct, data); err != nil {
			return err
		}
		printlnFn("Avatar updated")
		return nil
	}

	ct, data, err := a.avatars.GetAvatar(ctx, args[1])
	if err != nil {
		return err
	}
	dir, err := filex.EnsureSubDir(mediaDir)
	if err != nil {
		return err
	}
	path, err := filex.SaveMedia(dir, "avatar-"+args[1], ct, data)
	if err != nil {
		return err
	}
	printlnFn("Saved", path)
	return nil
}
