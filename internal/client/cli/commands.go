package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/passshare/internal/client/api"
	"github.com/dmitrijs2005/passshare/internal/client/services"
)

var errUsage = errors.New("usage")

type usageError string

func (u usageError) Error() string        { return "Usage: " + string(u) }
func (u usageError) Is(target error) bool { return target == errUsage }

// userMessage renders err the way the user should read it.
func userMessage(err error) string {
	var u usageError
	switch {
	case errors.As(err, &u):
		return u.Error()
	case errors.Is(err, services.ErrNoIdentity):
		return "Not logged in: use 'login <username>' first"
	case errors.Is(err, services.ErrNoSession):
		return "Not in a session: use 'create' or 'join <PASSKEY>' first"
	case errors.Is(err, services.ErrInSession):
		return "Already in a session: use 'leave' first"
	case errors.Is(err, services.ErrUnknownFile):
		return "Unknown file id: use 'files' or 'refresh' to see the list"
	default:
		return api.UserMessage(err)
	}
}

func (a *App) Help() {
	printlnFn("Available commands: login <username>, whoami, logout, create, join <PASSKEY>, " +
		"files (ls), refresh, upload <path>, download <fileId>, status, leave, exit")
}

func (a *App) Login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("login <username>")
	}
	id, err := a.sessions.Login(ctx, args[0])
	if err != nil {
		return err
	}
	a.setUser(id.Username)
	printlnFn("Logged in as " + id.Username)
	return nil
}

func (a *App) Whoami(ctx context.Context) error {
	id, err := a.sessions.Identity(ctx)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("%s (id %s)", id.Username, id.ID))
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	a.setUser("")
	printlnFn("Logged out")
	return nil
}

func (a *App) Create(ctx context.Context) error {
	id, err := a.sessions.Identity(ctx)
	if err != nil {
		return err
	}
	sess, err := a.sessions.Create(ctx, id.Username)
	if err != nil {
		return err
	}
	printlnFn("Session created. Share this passkey: " + sess.Passkey)
	return nil
}

func (a *App) Join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("join <PASSKEY>")
	}
	id, err := a.sessions.Identity(ctx)
	if err != nil {
		return err
	}
	sess, err := a.sessions.Join(ctx, args[0], id.Username)
	if err != nil {
		return err
	}
	printlnFn("Joined session " + sess.Passkey)
	printlnFn(formatFiles(a.sessions.Files()))
	return nil
}

func (a *App) Files(context.Context) error {
	if !a.sessions.Session().Active {
		return services.ErrNoSession
	}
	printlnFn(formatFiles(a.sessions.Files()))
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	sess := a.sessions.Session()
	if !sess.Active {
		return services.ErrNoSession
	}
	list, err := a.sessions.RefreshFiles(ctx, sess.Passkey)
	if err != nil {
		return err
	}
	printlnFn(formatFiles(list))
	return nil
}

func (a *App) Upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("upload <path>")
	}
	n, err := a.sessions.Upload(ctx, args[0])
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Uploaded %s (%s)", args[0], humanize.Bytes(uint64(n))))
	return nil
}

func (a *App) Download(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("download <fileId>")
	}
	path, n, err := a.sessions.Download(ctx, args[0], a.config.DownloadDir)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("Saved %s (%s)", path, humanize.Bytes(uint64(n))))
	return nil
}

func (a *App) Status(ctx context.Context) error {
	var b strings.Builder

	user := "not logged in"
	if id, err := a.sessions.Identity(ctx); err == nil {
		user = id.Username
	}
	fmt.Fprintf(&b, "User:     %s\n", user)

	mode := a.currentMode()
	if mode == "" {
		mode = "unknown"
	}
	fmt.Fprintf(&b, "Server:   %s (%s)\n", a.config.ServerURL, mode)

	sess := a.sessions.Session()
	if sess.Active {
		role := "member"
		if sess.Owner {
			role = "owner"
		}
		fmt.Fprintf(&b, "Session:  %s (%s)\n", sess.Passkey, role)
		fmt.Fprintf(&b, "Realtime: %s\n", a.sessions.ChannelState())
		fmt.Fprintf(&b, "Files:    %d", len(a.sessions.Files()))
	} else {
		b.WriteString("Session:  none")
	}

	printlnFn(b.String())
	return nil
}

func (a *App) Leave(ctx context.Context) error {
	sess := a.sessions.Session()
	if !sess.Active {
		return services.ErrNoSession
	}
	a.sessions.Leave(ctx)
	printlnFn("Left session " + sess.Passkey)
	return nil
}

// getStatus is shown in the prompt: "(user passkey state mode)".
func (a *App) getStatus() string {
	var parts []string
	if u := a.user(); u != "" {
		parts = append(parts, u)
	}
	if sess := a.sessions.Session(); sess.Active {
		parts = append(parts, sess.Passkey, a.sessions.ChannelState().String())
	}
	if m := a.currentMode(); m != "" {
		parts = append(parts, string(m))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}
