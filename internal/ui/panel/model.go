// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/nbassist/internal/assistant"
	"github.com/jeranaias/nbassist/internal/content"
	"github.com/jeranaias/nbassist/internal/diff"
	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/notebook"
	"github.com/jeranaias/nbassist/internal/settings"
	"github.com/jeranaias/nbassist/internal/ui/styles"
)

// Assistant is the engine surface the panel drives. *assistant.Engine
// implements it.
type Assistant interface {
	State() assistant.Snapshot
	Subscribe(fn func(assistant.Snapshot)) func()
	RefreshBackends(ctx context.Context) error
	SendMessage(ctx context.Context, text string) error
	FixLastError(ctx context.Context) error
	FixAllErrors(ctx context.Context) error
	ApplyCode(code string) error
	AppendCode(code string) error
	CopyCode(ctx context.Context, code string) error
	Document() notebook.Document
	Settings() *settings.Manager
}

var _ Assistant = (*assistant.Engine)(nil)

// =============================================================================
// MESSAGES
// =============================================================================

// stateChangedMsg is delivered when the engine notified a change.
type stateChangedMsg struct{}

// flowDoneMsg reports the end of a send or fix flow.
type flowDoneMsg struct {
	op  string
	err error
}

// actionDoneMsg reports the result of a code action.
type actionDoneMsg struct {
	op  string
	err error
}

// backendsLoadedMsg reports the initial backend refresh.
type backendsLoadedMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

type focus int

const (
	focusInput focus = iota
	focusConversation
	focusDiff
)

// codeRef locates one code block of the conversation.
type codeRef struct {
	messageID string
	code      string
	language  string
	// line is the first viewport line of the rendered block.
	line int
}

// Options configures the panel.
type Options struct {
	Theme *styles.Theme
	// Markdown renders prose through glamour.
	Markdown bool
	// ShowModel adds the model name to assistant labels.
	ShowModel bool
	// Compact drops the blank line between messages.
	Compact bool
	Logger  *slog.Logger
}

// Model is the Bubble Tea model of the assistant panel.
type Model struct {
	ctx    context.Context
	eng    Assistant
	opts   Options
	theme  *styles.Theme
	keys   KeyMap
	logger *slog.Logger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	prose    prose

	snap        assistant.Snapshot
	updates     chan struct{}
	unsubscribe func()

	focus    focus
	blocks   []codeRef
	selected int
	diff     diff.Alignment
	notice   string
	noticeOK bool

	width  int
	height int
}

// New creates a panel over eng. ctx bounds every request the panel starts.
// Call Close when the program exits.
func New(ctx context.Context, eng Assistant, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ModeAuto)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the notebook..."
	ti.CharLimit = 8192
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = opts.Theme.Spinner

	// A single pending signal is enough; the model always reads State().
	updates := make(chan struct{}, 1)
	unsubscribe := eng.Subscribe(func(assistant.Snapshot) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	m := Model{
		ctx:         ctx,
		eng:         eng,
		opts:        opts,
		theme:       opts.Theme,
		keys:        DefaultKeyMap(),
		logger:      logger,
		viewport:    viewport.New(80, 20),
		input:       ti,
		spinner:     sp,
		help:        help.New(),
		prose:       newProse(opts.Markdown, opts.Theme.GlamourStyle, 78),
		updates:     updates,
		unsubscribe: unsubscribe,
		selected:    -1,
	}
	m.refresh()
	return m
}

// Close unregisters the panel from the engine.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// waitForChange blocks until the engine signals a change.
func (m Model) waitForChange() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

// Init loads the backend list and starts listening for engine changes.
func (m Model) Init() tea.Cmd {
	eng, ctx := m.eng, m.ctx
	return tea.Batch(
		textinput.Blink,
		m.waitForChange(),
		func() tea.Msg {
			return backendsLoadedMsg{err: eng.RefreshBackends(ctx)}
		},
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case stateChangedMsg:
		wasBusy := m.snap.Busy()
		m.refresh()
		cmds := []tea.Cmd{m.waitForChange()}
		if m.snap.Busy() && !wasBusy {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case flowDoneMsg:
		m.refresh()
		m.setResult(msg.op, msg.err)
		return m, nil

	case actionDoneMsg:
		m.setResult(msg.op, msg.err)
		if msg.err == nil && m.focus == focusDiff {
			m.focus = focusConversation
			m.refresh()
		}
		return m, nil

	case backendsLoadedMsg:
		m.refresh()
		if msg.err != nil {
			m.setNotice("Backend list unavailable: "+msg.err.Error(), false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.focus == focusDiff {
		return m.handleDiffKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.FixLast):
		return m.startFlow("fix", m.eng.FixLastError)
	case key.Matches(msg, m.keys.FixAll):
		return m.startFlow("fix all", m.eng.FixAllErrors)
	case key.Matches(msg, m.keys.CycleBackend):
		m.cycleBackend()
		return m, nil
	case key.Matches(msg, m.keys.CycleModel):
		m.cycleModel()
		return m, nil
	case key.Matches(msg, m.keys.SwitchFocus):
		m.toggleFocus()
		return m, nil
	}

	if m.focus == focusInput {
		if key.Matches(msg, m.keys.Send) {
			return m.send()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m.handleConversationKey(msg)
}

func (m Model) handleConversationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.toggleFocus()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
	case key.Matches(msg, m.keys.PrevBlock):
		m.selectBlock(m.selected - 1)
	case key.Matches(msg, m.keys.NextBlock):
		m.selectBlock(m.selected + 1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
	case key.Matches(msg, m.keys.Apply):
		return m.runAction("apply", m.eng.ApplyCode)
	case key.Matches(msg, m.keys.Insert):
		return m.runAction("insert", m.eng.AppendCode)
	case key.Matches(msg, m.keys.Copy):
		eng, ctx := m.eng, m.ctx
		return m.runAction("copy", func(code string) error { return eng.CopyCode(ctx, code) })
	case key.Matches(msg, m.keys.Diff):
		m.openDiff()
	}
	return m, nil
}

func (m Model) handleDiffKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.focus = focusConversation
		m.refresh()
	case key.Matches(msg, m.keys.Apply):
		return m.runAction("apply", m.eng.ApplyCode)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
	}
	return m, nil
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusConversation
		m.input.Blur()
		if len(m.blocks) == 0 {
			m.renderConversation()
			return
		}
		if m.selected < 0 {
			m.selected = len(m.blocks) - 1
		}
		m.selectBlock(m.selected)
		return
	}
	m.focus = focusInput
	m.input.Focus()
	m.refresh()
}

// =============================================================================
// FLOWS AND ACTIONS
// =============================================================================

func (m Model) send() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.snap.Busy() {
		m.setNotice(assistant.ErrBusy.Error(), false)
		return m, nil
	}
	eng, ctx := m.eng, m.ctx
	m.input.Reset()
	m.notice = ""
	return m, tea.Batch(
		func() tea.Msg { return flowDoneMsg{op: "send", err: eng.SendMessage(ctx, text)} },
		m.spinner.Tick,
	)
}

func (m Model) startFlow(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	if m.snap.Busy() {
		m.setNotice(assistant.ErrBusy.Error(), false)
		return m, nil
	}
	ctx := m.ctx
	m.notice = ""
	return m, tea.Batch(
		func() tea.Msg { return flowDoneMsg{op: op, err: fn(ctx)} },
		m.spinner.Tick,
	)
}

func (m Model) runAction(op string, fn func(string) error) (tea.Model, tea.Cmd) {
	ref, ok := m.selectedBlock()
	if !ok {
		m.setNotice("No code block selected", false)
		return m, nil
	}
	code := ref.code
	return m, func() tea.Msg { return actionDoneMsg{op: op, err: fn(code)} }
}

func (m *Model) setResult(op string, err error) {
	switch {
	case err == nil:
		switch op {
		case "apply":
			m.setNotice("Code applied to the active cell", true)
		case "insert":
			m.setNotice("Code inserted below the active cell", true)
		case "copy":
			m.setNotice("Code copied", true)
		default:
			m.notice = ""
		}
	case errors.Is(err, assistant.ErrEmptyMessage):
		m.notice = ""
	case errors.Is(err, context.Canceled):
		m.setNotice(op+" cancelled", false)
	default:
		m.setNotice(op+" failed: "+err.Error(), false)
	}
}

func (m *Model) setNotice(text string, ok bool) {
	m.notice = text
	m.noticeOK = ok
}

// =============================================================================
// BACKEND SELECTION
// =============================================================================

func (m *Model) cycleBackend() {
	backends := m.snap.Backends
	if len(backends) == 0 {
		m.setNotice("No backends available", false)
		return
	}
	next := 0
	for i, b := range backends {
		if b.ID == m.snap.ActiveBackend {
			next = (i + 1) % len(backends)
			break
		}
	}
	m.eng.Settings().SetActiveBackend(backends[next].ID)
	m.refresh()
	m.setNotice("Backend: "+backends[next].DisplayName(), true)
}

func (m *Model) cycleModel() {
	b, ok := gateway.FindBackend(m.snap.Backends, m.snap.ActiveBackend)
	if !ok || len(b.Models) == 0 {
		m.setNotice("No models for the active backend", false)
		return
	}
	next := 0
	for i, mi := range b.Models {
		if mi.ID == m.snap.ActiveModel {
			next = (i + 1) % len(b.Models)
			break
		}
	}
	m.eng.Settings().SetModel(b.ID, b.Models[next].ID)
	m.refresh()
	m.setNotice("Model: "+b.Models[next].ID, true)
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// collectBlocks lists the code blocks of non-error assistant messages.
func collectBlocks(msgs []model.Message) []codeRef {
	var refs []codeRef
	for _, msg := range msgs {
		if msg.Role != model.RoleAssistant || msg.Error {
			continue
		}
		for _, seg := range content.Parse(msg.Content) {
			if seg.Kind == content.KindCode && seg.Value != "" {
				refs = append(refs, codeRef{messageID: msg.ID, code: seg.Value, language: seg.Language})
			}
		}
	}
	return refs
}

func (m Model) selectedBlock() (codeRef, bool) {
	if m.selected < 0 || m.selected >= len(m.blocks) {
		return codeRef{}, false
	}
	return m.blocks[m.selected], true
}

func (m *Model) selectBlock(i int) {
	if len(m.blocks) == 0 {
		return
	}
	i = max(0, min(i, len(m.blocks)-1))
	m.selected = i
	m.renderConversation()
	m.viewport.SetYOffset(m.blocks[i].line)
}

// openDiff compares the active cell with the selected block.
func (m *Model) openDiff() {
	ref, ok := m.selectedBlock()
	if !ok {
		m.setNotice("No code block selected", false)
		return
	}
	doc := m.eng.Document()
	if doc == nil {
		m.setNotice("No document is open", false)
		return
	}
	idx := doc.ActiveIndex()
	units := doc.Units()
	if idx < 0 || idx >= len(units) {
		m.setNotice("Document has no active cell", false)
		return
	}
	m.diff = diff.Align(units[idx].Text, ref.code)
	m.focus = focusDiff
	m.viewport.SetContent(m.renderDiff())
	m.viewport.GotoTop()
}

// =============================================================================
// LAYOUT
// =============================================================================

// refresh re-reads engine state and re-renders the conversation.
func (m *Model) refresh() {
	m.snap = m.eng.State()
	prev := len(m.blocks)
	m.blocks = collectBlocks(m.snap.Messages)
	if len(m.blocks) != prev {
		m.selected = len(m.blocks) - 1
	}
	if m.selected >= len(m.blocks) {
		m.selected = len(m.blocks) - 1
	}
	if m.focus == focusDiff {
		return
	}
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.renderConversation()
	if atBottom || m.focus == focusInput {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	m.width, m.height = width, height
	m.theme.SetSize(width, height)
	m.help.Width = width

	// header + input box (3) + status line
	reserved := 1 + 3 + 1
	if m.help.ShowAll {
		reserved += 4
	}
	m.viewport.Width = width
	m.viewport.Height = max(1, height-reserved)
	m.input.Width = max(10, width-6)
	m.prose = newProse(m.opts.Markdown, m.theme.GlamourStyle, width-4)

	if m.focus == focusDiff {
		m.viewport.SetContent(m.renderDiff())
		return
	}
	m.renderConversation()
	if m.focus == focusInput {
		m.viewport.GotoBottom()
	}
}
