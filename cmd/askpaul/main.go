package main

import (
	"askpaul-backend/internal/client"
	"askpaul-backend/internal/models"
	"askpaul-backend/internal/session"
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"
)

var (
	serverURL = flag.String("server", envOr("ASKPAUL_SERVER", "http://localhost:8080"), "Ask Paul server URL")
	cachePath = flag.String("session-file", defaultCachePath(), "File that keeps you signed in between runs")
	verbose   = flag.Bool("v", false, "Log client diagnostics to stderr")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "askpaul", "session.db")
}

var (
	paulStyle   = color.New(color.FgCyan, color.Bold).SprintFunc()
	youStyle    = color.New(color.FgGreen, color.Bold).SprintFunc()
	noticeStyle = color.New(color.FgYellow).SprintFunc()
	errorStyle  = color.New(color.FgRed).SprintFunc()
	dimStyle    = color.New(color.Faint).SprintFunc()
)

type app struct {
	mgr  *session.Manager
	auth *client.AuthClient
	in   *bufio.Scanner
	out  io.Writer

	// ids shown by the last /list, so N keeps meaning what was printed
	listed []uuid.UUID
}

func main() {
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nGoodbye.")
		cancel()
		os.Exit(0)
	}()

	cache, err := client.OpenTokenCache(*cachePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle("Could not open session file, you will need to log in each run: "+err.Error()))
	} else {
		defer cache.Close()
	}

	authClient := client.NewAuthClient(*serverURL, nil, cache)
	a := &app{
		auth: authClient,
		mgr: session.NewManager(
			client.NewRelayClient(*serverURL, nil),
			client.NewStoreClient(*serverURL, nil, authClient),
			authClient,
		),
		in:  bufio.NewScanner(os.Stdin),
		out: os.Stdout,
	}

	fmt.Fprintln(a.out, paulStyle("Ask Paul"))
	fmt.Fprintln(a.out, dimStyle("Type a message and press Enter. /help lists commands."))
	if authClient.Restore() {
		a.afterSignIn(ctx)
	} else {
		fmt.Fprintln(a.out, dimStyle("You are chatting anonymously; nothing is saved. /login to keep your conversations."))
	}

	a.loop(ctx)
}

func (a *app) loop(ctx context.Context) {
	for {
		fmt.Fprint(a.out, youStyle("You: "))
		if !a.in.Scan() {
			return
		}
		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.command(ctx, line); quit {
				return
			}
			continue
		}
		a.send(ctx, line)
	}
}

func (a *app) send(ctx context.Context, text string) {
	fmt.Fprintln(a.out, dimStyle("Paul is thinking..."))
	reply, err := a.mgr.SendTurn(ctx, text)
	switch {
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(a.out, noticeStyle("Still waiting on the last reply."))
		return
	case err != nil:
		return
	}
	fmt.Fprintf(a.out, "%s %s\n\n", paulStyle("Paul:"), reply.Content)
}

func (a *app) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit":
		return true
	case "/help":
		a.help()
	case "/signup":
		a.signup(ctx)
	case "/login":
		a.login(ctx)
	case "/logout":
		a.listed = nil
		if err := a.mgr.Logout(ctx); err != nil {
			fmt.Fprintln(a.out, noticeStyle("Signed out locally; the server did not confirm: "+err.Error()))
			return false
		}
		fmt.Fprintln(a.out, noticeStyle("Signed out."))
	case "/new":
		if err := a.mgr.NewConversation(); err != nil {
			fmt.Fprintln(a.out, noticeStyle(err.Error()))
			return false
		}
		fmt.Fprintln(a.out, noticeStyle("Started a new conversation."))
	case "/list":
		a.list(ctx)
	case "/switch", "/delete":
		id, ok := a.pick(fields)
		if !ok {
			return false
		}
		if fields[0] == "/switch" {
			a.switchTo(ctx, id)
		} else if err := a.mgr.DeleteConversation(ctx, id); err != nil {
			fmt.Fprintln(a.out, errorStyle("Could not delete: "+err.Error()))
		} else {
			a.forget(id)
			fmt.Fprintln(a.out, noticeStyle("Deleted."))
		}
	default:
		fmt.Fprintln(a.out, noticeStyle("Unknown command "+fields[0]+", try /help"))
	}
	return false
}

func (a *app) help() {
	fmt.Fprintln(a.out, `Commands:
  /signup        create an account
  /login         sign in to save conversations
  /logout        sign out and clear this session
  /new           start a new conversation
  /list          show your recent conversations
  /switch N      open conversation N from /list
  /delete N      delete conversation N from /list
  /exit          quit`)
}

func (a *app) prompt(label string) (string, bool) {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

func (a *app) password() (string, bool) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(a.out, "Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(a.out)
		return string(b), err == nil
	}
	return a.prompt("Password: ")
}

func (a *app) signup(ctx context.Context) {
	name, ok := a.prompt("Name: ")
	if !ok {
		return
	}
	email, ok := a.prompt("Email: ")
	if !ok {
		return
	}
	password, ok := a.password()
	if !ok {
		return
	}
	msg, err := a.auth.Signup(ctx, email, password, name)
	if err != nil {
		fmt.Fprintln(a.out, errorStyle(err.Error()))
		return
	}
	fmt.Fprintln(a.out, noticeStyle(msg))
}

func (a *app) login(ctx context.Context) {
	email, ok := a.prompt("Email: ")
	if !ok {
		return
	}
	password, ok := a.password()
	if !ok {
		return
	}
	if _, err := a.auth.Login(ctx, email, password); err != nil {
		fmt.Fprintln(a.out, errorStyle(err.Error()))
		return
	}
	if err := a.mgr.NewConversation(); err != nil {
		fmt.Fprintln(a.out, noticeStyle(err.Error()))
	}
	a.afterSignIn(ctx)
}

func (a *app) afterSignIn(ctx context.Context) {
	if err := a.mgr.Start(ctx); err != nil {
		fmt.Fprintln(a.out, noticeStyle("Signed in, but your conversations could not be loaded right now."))
	}
	snap := a.mgr.Snapshot()
	greeting := "Welcome back."
	if snap.Profile != nil && snap.Profile.Name != "" {
		greeting = "Welcome back, " + snap.Profile.Name + "."
	}
	fmt.Fprintln(a.out, paulStyle(greeting), dimStyle(fmt.Sprintf("(%s, %d saved conversations)", a.auth.Email(), len(snap.Conversations))))
}

func (a *app) list(ctx context.Context) {
	if !a.auth.Authenticated() {
		fmt.Fprintln(a.out, noticeStyle("Log in to see saved conversations."))
		return
	}
	if err := a.mgr.RefreshConversations(ctx); err != nil {
		fmt.Fprintln(a.out, errorStyle("Could not load conversations: "+err.Error()))
	}
	snap := a.mgr.Snapshot()
	a.listed = a.listed[:0]
	if len(snap.Conversations) == 0 {
		fmt.Fprintln(a.out, dimStyle("No conversations yet."))
		return
	}
	for i, c := range snap.Conversations {
		a.listed = append(a.listed, c.ID)
		marker := " "
		if c.ID == snap.ConversationID {
			marker = "*"
		}
		fmt.Fprintf(a.out, "%s %2d. %s %s\n", marker, i+1, c.Title, dimStyle(c.UpdatedAt.Local().Format("Jan 2 15:04")))
	}
}

func (a *app) pick(fields []string) (uuid.UUID, bool) {
	if len(fields) != 2 {
		fmt.Fprintln(a.out, noticeStyle("Usage: "+fields[0]+" N (see /list)"))
		return uuid.Nil, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(a.listed) || a.listed[n-1] == uuid.Nil {
		fmt.Fprintln(a.out, noticeStyle("No conversation "+fields[1]+" in the last /list"))
		return uuid.Nil, false
	}
	return a.listed[n-1], true
}

// forget blanks a deleted id so later numbers in the listing stay put.
func (a *app) forget(id uuid.UUID) {
	for i, l := range a.listed {
		if l == id {
			a.listed[i] = uuid.Nil
		}
	}
}

func (a *app) switchTo(ctx context.Context, id uuid.UUID) {
	if err := a.mgr.SwitchConversation(ctx, id); err != nil {
		fmt.Fprintln(a.out, errorStyle("Could not open conversation: "+err.Error()))
		return
	}
	for _, t := range a.mgr.Snapshot().Turns {
		if t.Role == models.RoleUser {
			fmt.Fprintf(a.out, "%s %s\n", youStyle("You:"), t.Content)
		} else {
			fmt.Fprintf(a.out, "%s %s\n\n", paulStyle("Paul:"), t.Content)
		}
	}
}
