// Package cli provides the interactive FeedKeeper command-line client.
//
// It wires configuration, the cached content store, the message broker
// client and the group implementation into a feed session, and drives it
// from a REPL. Typical flow: prompt for credentials, bootstrap the feed,
// start a background inbox poller, and execute user commands.
//
// Key features:
//   - Login / Logout (keys are derived from the password, never stored)
//   - Post with metrics, thumbnail and media attachments
//   - Timeline, pages and title search
//   - Follow / allow and pending requests
//   - Like, unlike and comment
//   - Avatar upload and download
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartInboxPoller, and runREPL for details.
package cli
