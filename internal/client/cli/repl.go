package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Post(ctx context.Context) error
	Timeline(ctx context.Context) error
	Page(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
	Follow(ctx context.Context, args []string) error
	Allow(ctx context.Context, args []string) error
	Requests(ctx context.Context) error
	Followers(ctx context.Context) error
	Inbox(ctx context.Context) error
	Like(ctx context.Context, args []string) error
	Unlike(ctx context.Context, args []string) error
	Comment(ctx context.Context, args []string) error
	Avatar(ctx context.Context, args []string) error
}

// runREPL starts a read–eval–print loop for the FeedKeeper CLI.
//
// It reads a line from reader, parses the first token as the command, and
// passes the remaining tokens to the handler. Command prompts read from the
// same reader. The loop exits on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  help, login, exit | quit
//
//	Logged in:
//	  post                       create a post
//	  timeline                   newest posts of everyone followed
//	  page [user] <n>            one page of a listing
//	  show <post>                body of an own post
//	  search <words>             own posts whose title has every word
//	  follow <user>              ask to follow
//	  allow <user>               accept a follow request
//	  requests                   pending follow requests
//	  followers                  members of the own group
//	  inbox                      process incoming messages now
//	  like | unlike <user> <post>
//	  comment <user> <post>      prompts for the text
//	  avatar set <file> | get <user>
//	  logout, exit | quit
//
// A failing command prints its error and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("fk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: post, timeline, page, show, search, follow, allow, requests, followers, inbox, like, unlike, comment, avatar, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "post":
			err = a.Post(ctx)

		case "t", "timeline":
			err = a.Timeline(ctx)

		case "page":
			err = a.Page(ctx, args)

		case "show":
			err = a.Show(ctx, args)

		case "search":
			err = a.Search(ctx, args)

		case "follow":
			err = a.Follow(ctx, args)

		case "allow":
			err = a.Allow(ctx, args)

		case "requests":
			err = a.Requests(ctx)

		case "followers":
			err = a.Followers(ctx)

		case "inbox":
			err = a.Inbox(ctx)

		case "like":
			err = a.Like(ctx, args)

		case "unlike":
			err = a.Unlike(ctx, args)

		case "comment":
			err = a.Comment(ctx, args)

		case "avatar":
			err = a.Avatar(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

// Root greets the user, asks for credentials, starts the inbox poller and
// hands stdin to the REPL.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to FeedKeeper CLI (type 'help' for commands)")

	if err := a.Login(ctx); err != nil {
		printlnFn("Error:", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartInboxPoller(ctx, a.config.PollInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}
