package cli

import (
	"context"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/cryptox"
	"github.com/dmitrijs2005/feedkeeper/internal/feed"
)

// Login prompts for a user id and password, derives the master and signing
// keys from them and bootstraps the feed. A user id seen for the first time
// gets a fresh manifest, group and first page.
//
// The password is wiped before returning. The session is only kept when
// Bootstrap succeeds.
func (a *App) Login(ctx context.Context) error {
	ask := a.ask()
	userName, err := ask.Required("User id")
	if err != nil {
		return err
	}

	password, err := ask.Password(userName)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	masterKey := cryptox.DeriveMasterKey(password, []byte(userName))
	signing, err := feed.DeriveSigningKey(masterKey)
	if err != nil {
		return err
	}

	s := a.newSession(feed.Config{UserID: userName, MasterKey: masterKey, SigningKey: signing})
	if err := s.Bootstrap(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.session = s
	a.userName = userName
	a.mu.Unlock()

	a.log.Info(ctx, "logged in", "user", userName)
	printlnFn("Logged in as", userName)
	return nil
}

// Logout drops the session. Keys live only inside it.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return errNotLoggedIn
	}
	a.session = nil
	a.userName = ""
	printlnFn("Logged out")
	return nil
}
