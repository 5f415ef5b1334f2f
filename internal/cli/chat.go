package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"querai-chat/internal/app"
	"querai-chat/internal/exchange"
	"querai-chat/internal/switcher"
)

const chatHelp = `Type a question, or one of:
  /source <id>   select a data source
  /confirm       confirm a pending data source switch
  /cancel        keep the current chat
  /new           start a new chat on the current data source
  /open <id>     open a chat from the list
  /delete <id>   delete a chat
  /clear         delete every chat
  /list          show chats
  /older         show older messages
  /quit          leave`

func newChatCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Start(cmd.Context()); err != nil {
				return err
			}
			return NewREPL(a, cmd.OutOrStdout()).Run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// REPL reads one line at a time. Questions are answered before the next
// line is read, so the loading flag is never contended.
type REPL struct {
	app *app.App
	out io.Writer
}

func NewREPL(a *app.App, out io.Writer) *REPL {
	return &REPL{app: a, out: out}
}

func (r *REPL) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, chatHelp)
	r.printState()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if quit := r.Handle(ctx, scanner.Text()); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Handle runs one input line and reports whether the user asked to quit.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	defer r.printNotices()

	if !strings.HasPrefix(line, "/") {
		r.ask(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/source":
		if arg == "" {
			r.fail(errors.New("usage: /source <id>"))
			return false
		}
		out, err := r.app.Switcher.Select(ctx, arg)
		r.switched(out, err)
	case "/confirm":
		out, err := r.app.Switcher.Confirm(ctx)
		r.switched(out, err)
	case "/cancel":
		out, err := r.app.Switcher.Cancel()
		r.switched(out, err)
	case "/new":
		if _, err := r.app.NewChat(ctx, "", ""); err != nil {
			r.fail(err)
			return false
		}
		r.printState()
	case "/open":
		if _, err := r.app.OpenChat(ctx, arg); err != nil {
			r.fail(err)
			return false
		}
		r.printState()
	case "/delete":
		if err := r.app.DeleteChat(ctx, arg); err != nil {
			r.fail(err)
		}
		fmt.Fprint(r.out, renderSessions(r.app.Sessions.Views(r.app.Store.ActiveChatID())))
	case "/clear":
		ran, err := r.app.DeleteAllChats(ctx)
		switch {
		case err != nil:
			r.fail(err)
		case !ran:
			fmt.Fprintln(r.out, metaStyle.Render("Nothing to delete."))
		default:
			fmt.Fprintln(r.out, metaStyle.Render("All chats deleted."))
		}
	case "/list":
		if err := r.app.Sessions.Refresh(ctx); err != nil {
			r.fail(err)
		}
		fmt.Fprint(r.out, renderSessions(r.app.Sessions.Views(r.app.Store.ActiveChatID())))
	case "/older":
		r.app.Store.LoadOlder()
		r.printState()
	default:
		r.fail(fmt.Errorf("unknown command %s", fields[0]))
	}
	return false
}

func (r *REPL) ask(ctx context.Context, question string) {
	reply, err := r.app.Exchange.SendQuestion(ctx, question)
	if errors.Is(err, exchange.ErrBusy) {
		r.fail(err)
		return
	}
	// Rejected questions leave the log alone; the notice explains why.
	if errors.Is(err, exchange.ErrNoActiveSession) || errors.Is(err, exchange.ErrEmptyQuestion) {
		return
	}
	if reply.Role != "" {
		fmt.Fprintln(r.out, renderMessage(reply))
	}
}

func (r *REPL) switched(out switcher.Outcome, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	switch out.State {
	case switcher.PendingSwitch:
		fmt.Fprintln(r.out, metaStyle.Render(fmt.Sprintf(
			"Switching to %s starts a new chat. /confirm or /cancel.", out.Pending)))
	case switcher.Unbound:
		fmt.Fprintln(r.out, metaStyle.Render("Data source deselected."))
	default:
		fmt.Fprintln(r.out, metaStyle.Render(fmt.Sprintf(
			"Chat %s on %s.", out.ChatID, r.app.Store.ActiveDataSourceID())))
		r.printState()
	}
}

func (r *REPL) printState() {
	fmt.Fprint(r.out, renderState(r.app.Snapshot()))
}

func (r *REPL) printNotices() {
	fmt.Fprint(r.out, renderNotices(r.app.Notices.Drain()))
}

func (r *REPL) fail(err error) {
	fmt.Fprintln(r.out, errorStyle.Render("error: "+err.Error()))
}
