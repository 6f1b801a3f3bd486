package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
	"github.com/pribylovaa/aihub-client/internal/tokenstore"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":    {"log in with email and password", cmdLogin},
	"register": {"create an account and log in", cmdRegister},
	"logout":   {"forget stored credentials", cmdLogout},
	"whoami":   {"show the current user", cmdWhoami},
	"papers":   {"list papers [-q query] [-page n]", cmdPapers},
	"paper":    {"show one paper: paper <id>", cmdPaper},
	"notes":    {"list your notes [-search s]", cmdNotes},
	"note-add": {"create a note -title t [-content c] [-paper id]", cmdNoteAdd},
	"chat":     {"ask the assistant, streaming the answer: chat <message>", cmdChat},
	"events":   {"print your live events until interrupted", cmdEvents},
	"health":   {"check the backend", cmdHealth},
}

var commandOrder = []string{
	"login", "register", "logout", "whoami", "papers", "paper", "notes", "note-add", "chat", "events", "health",
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: aihub [-config path] [-v] <command> [args]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range commandOrder {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].summary)
	}
	_ = tw.Flush()
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (default: $AIHUB_PASSWORD or prompt)")
	if err := fs.Parse(args); err != nil || *email == "" {
		return usageErr("aihub login -email you@example.com [-password ...]")
	}

	pw, err := passwordFrom(*password)
	if err != nil {
		return err
	}

	u, err := a.sess.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s <%s>\n", u.Username, u.Email)

	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	username := fs.String("username", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (default: $AIHUB_PASSWORD or prompt)")
	if err := fs.Parse(args); err != nil || *email == "" || *username == "" {
		return usageErr("aihub register -username name -email you@example.com [-password ...]")
	}

	pw, err := passwordFrom(*password)
	if err != nil {
		return err
	}

	u, err := a.sess.Register(ctx, *username, *email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and logged in as %s <%s>\n", u.Username, u.Email)

	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.sess.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")

	return nil
}

func cmdWhoami(ctx context.Context, a *app, _ []string) error {
	u, err := a.sess.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s role=%s\n", u.Username, u.Email, u.ID, u.Role)

	return nil
}

func cmdPapers(ctx context.Context, a *app, args []string) error {
	fs := newFlags("papers")
	q := fs.String("q", "", "full-text search query")
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args); err != nil {
		return usageErr("aihub papers [-q query] [-page n]")
	}

	var papers []models.Paper
	if *q != "" {
		found, err := a.api.Papers.Search(ctx, *q, 0)
		if err != nil {
			return err
		}
		papers = found
	} else {
		res, err := a.api.Papers.List(ctx, models.PaperListParams{ListParams: models.ListParams{Page: *page}})
		if err != nil {
			return err
		}
		papers = res.Items
		defer fmt.Fprintf(a.out, "page %d of %d, %d total\n", res.Page, res.TotalPages, res.Total)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, deref(p.ArxivID), p.Title)
	}

	return tw.Flush()
}

func cmdPaper(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("aihub paper <id>")
	}

	p, err := a.api.Papers.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s\narXiv: %s  published: %s\n\n%s\n", p.Title, deref(p.ArxivID), deref(p.PublishedDate), deref(p.Abstract))

	return nil
}

func cmdNotes(ctx context.Context, a *app, args []string) error {
	fs := newFlags("notes")
	search := fs.String("search", "", "filter by text")
	if err := fs.Parse(args); err != nil {
		return usageErr("aihub notes [-search s]")
	}

	res, err := a.api.Notes.List(ctx, models.NoteListParams{Search: *search})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, n := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", n.ID, n.UpdatedAt, n.Title)
	}

	return tw.Flush()
}

func cmdNoteAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlags("note-add")
	title := fs.String("title", "", "note title")
	content := fs.String("content", "", "note body")
	paper := fs.String("paper", "", "related paper id")
	if err := fs.Parse(args); err != nil || *title == "" {
		return usageErr("aihub note-add -title t [-content c] [-paper id]")
	}

	n, err := a.api.Notes.Create(ctx, models.NoteCreate{Title: *title, Content: *content, PaperID: *paper})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created note %s\n", n.ID)

	return nil
}

func cmdChat(ctx context.Context, a *app, args []string) error {
	msg := strings.TrimSpace(strings.Join(args, " "))
	if msg == "" {
		return usageErr("aihub chat <message>")
	}

	err := a.api.AI.ChatStream(ctx, models.ChatRequest{Message: msg}, func(chunk string) {
		fmt.Fprint(a.out, chunk)
	})
	fmt.Fprintln(a.out)

	return err
}

func cmdEvents(ctx context.Context, a *app, _ []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(chan error, 1)
	closeFn, err := a.api.System.Events(ctx, client.Handlers{
		OnOpen: func() { fmt.Fprintln(a.errOut, "Listening for events, Ctrl+C to stop") },
		OnMessage: func(ev client.Event) {
			fmt.Fprintf(a.out, "%s\t%s\n", ev.Type, ev.Data)
		},
		OnError: func(err error) { failed <- err },
	})
	if err != nil {
		return err
	}
	defer closeFn()

	// Выход в другом процессе закрывает ленту.
	if f, ok := a.store.(*tokenstore.File); ok {
		go func() {
			_ = f.Watch(ctx, func() {
				if !a.sess.IsAuthenticated(ctx) {
					fmt.Fprintln(a.errOut, "Credentials removed, closing the feed")
					cancel()
				}
			})
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		return err
	}
}

func cmdHealth(ctx context.Context, a *app, _ []string) error {
	h, err := a.api.System.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s (version %s)\n", h.Status, h.Timestamp, h.Version)

	return nil
}

// passwordFrom берёт пароль из флага, переменной окружения или stdin.
func passwordFrom(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("AIHUB_PASSWORD"); v != "" {
		return v, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}

	return *s
}
