// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/nbassist/internal/assistant"
	"github.com/jeranaias/nbassist/internal/config"
	"github.com/jeranaias/nbassist/internal/content"
	"github.com/jeranaias/nbassist/internal/logging"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/ui/panel"
	"github.com/jeranaias/nbassist/internal/ui/styles"
)

func newChatCommand(a *app) *cobra.Command {
	var (
		plain bool
		save  bool
	)

	cmd := &cobra.Command{
		Use:   "chat [notebook.ipynb]",
		Short: "Open the assistant panel, optionally over a notebook",
		Long: `Opens the assistant. With a notebook, questions carry its cells as context
and suggested code can be applied to the active cell or inserted below it.

The full-screen panel is used on a terminal; --plain (or a non-terminal
stdin/stdout) falls back to a line-oriented prompt.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			nb, err := loadNotebook(path)
			if err != nil {
				return err
			}

			usePanel := !plain && CanRunPanel()
			if usePanel && a.cfg.Log.File == "" {
				// stderr belongs to the panel.
				a.logger = logging.Discard()
				slog.SetDefault(a.logger)
			}

			h, err := a.openSettings(ctx)
			if err != nil {
				return err
			}
			defer h.Close(context.WithoutCancel(ctx))
			a.watchSettings(ctx, h)

			eng, err := a.newEngine(h.Manager, nb, os.Stderr)
			if err != nil {
				return err
			}

			if usePanel {
				err = panel.Run(ctx, eng, panel.Options{
					Theme:     styles.NewTheme(a.cfg.UI.Theme),
					Markdown:  true,
					ShowModel: a.cfg.UI.ShowModel,
					Compact:   a.cfg.UI.CompactMode,
					Logger:    a.logger,
				})
			} else {
				err = runREPL(ctx, eng, cmd.OutOrStdout())
			}
			if err != nil {
				return err
			}

			if save && path != "" {
				if err := nb.Save(path); err != nil {
					return fmt.Errorf("failed to save notebook: %w", err)
				}
				printSuccess(cmd.OutOrStdout(), "Saved %s", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "use the line-oriented prompt instead of the panel")
	cmd.Flags().BoolVar(&save, "save", false, "write applied or inserted code back to the notebook on exit")
	return cmd
}

// =============================================================================
// LINE-ORIENTED PROMPT
// =============================================================================

const replHelp = `Commands:
  /fix              fix the last erroring cell
  /fixall           fix every erroring cell
  /apply [n]        apply code block n of the last reply to the active cell
  /insert [n]       insert code block n of the last reply below the active cell
  /copy [n]         copy code block n of the last reply
  /cell <n>         make cell n (1-based) the active cell
  /backend [id]     show or switch the active backend
  /model [id]       show or switch the model of the active backend
  /help             show this help
  /quit             leave
Anything else is sent to the assistant.`

// repl drives an engine from text commands and prints new messages.
type repl struct {
	eng  *assistant.Engine
	out  io.Writer
	seen int
}

// handle executes one input line. It reports whether the user asked to quit.
func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		err := r.eng.SendMessage(ctx, line)
		r.flush()
		return false, err
	}

	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprintln(r.out, replHelp)
	case "/fix":
		err := r.eng.FixLastError(ctx)
		r.flush()
		return false, err
	case "/fixall":
		err := r.eng.FixAllErrors(ctx)
		r.flush()
		return false, err
	case "/apply", "/insert", "/copy":
		code, err := r.codeBlock(arg)
		if err != nil {
			return false, err
		}
		switch fields[0] {
		case "/apply":
			err = r.eng.ApplyCode(code)
		case "/insert":
			err = r.eng.AppendCode(code)
		default:
			err = r.eng.CopyCode(ctx, code)
		}
		if err != nil {
			return false, err
		}
		printSuccess(r.out, "Done")
	case "/cell":
		return false, r.selectCell(arg)
	case "/backend":
		r.backend(arg)
	case "/model":
		r.model(arg)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

// flush prints messages appended since the last call.
func (r *repl) flush() {
	msgs := r.eng.State().Messages
	for _, msg := range msgs[min(r.seen, len(msgs)):] {
		printMessage(r.out, msg)
	}
	r.seen = len(msgs)
}

// codeBlock returns block n (1-based, default 1) of the last usable reply.
func (r *repl) codeBlock(arg string) (string, error) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return "", fmt.Errorf("invalid block number %q", arg)
		}
		n = v
	}
	msgs := r.eng.State().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Role != model.RoleAssistant || msg.Error {
			continue
		}
		blocks := content.Code(msg.Content)
		if len(blocks) == 0 {
			continue
		}
		if n > len(blocks) {
			return "", fmt.Errorf("the last reply has %d code block(s)", len(blocks))
		}
		return blocks[n-1], nil
	}
	return "", errors.New("no reply with code yet")
}

func (r *repl) selectCell(arg string) error {
	doc := r.eng.Document()
	if doc == nil {
		return errors.New("no notebook is open")
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid cell number %q", arg)
	}
	if err := doc.SetActiveIndex(n - 1); err != nil {
		return err
	}
	printSuccess(r.out, "Active cell: %d", n)
	return nil
}

func (r *repl) backend(id string) {
	snap := r.eng.State()
	if id == "" {
		printKV(r.out, "backend", snap.ActiveBackend)
		return
	}
	r.eng.Settings().SetActiveBackend(id)
	printSuccess(r.out, "Backend: %s (model %s)", id, r.eng.State().ActiveModel)
}

func (r *repl) model(id string) {
	snap := r.eng.State()
	if id == "" {
		printKV(r.out, "model", snap.ActiveModel)
		return
	}
	r.eng.Settings().SetModel(snap.ActiveBackend, id)
	printSuccess(r.out, "Model: %s", id)
}

func printMessage(w io.Writer, msg model.Message) {
	var label string
	switch {
	case msg.Error:
		label = styles.RenderError("Error")
	case msg.Role == model.RoleUser:
		return
	case msg.Role == model.RoleSystem:
		label = MutedStyle.Render(msg.Role.DisplayName())
	default:
		label = AssistantStyle.Render(msg.Role.DisplayName())
		if src := msg.Source(); src != "" {
			label += MutedStyle.Render(" (" + src + ")")
		}
	}
	fmt.Fprintf(w, "%s\n%s\n\n", label, strings.TrimSpace(msg.Content))
}

// runREPL reads lines until /quit, EOF or Ctrl+C.
func runREPL(ctx context.Context, eng *assistant.Engine, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(historyFile), 0700); err != nil {
			return
		}
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	if err := eng.RefreshBackends(ctx); err != nil {
		printWarning(out, "backend list unavailable: %v", err)
	}
	snap := eng.State()
	fmt.Fprintln(out, TitleStyle.Render("nbassist")+" "+MutedStyle.Render(snap.ActiveBackend+" / "+snap.ActiveModel))
	fmt.Fprintln(out, MutedStyle.Render("Type /help for commands."))

	r := &repl{eng: eng, out: out}
	for ctx.Err() == nil {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		quit, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintln(out, styles.RenderError(err.Error()))
		}
		if quit {
			return nil
		}
	}
	return nil
}
