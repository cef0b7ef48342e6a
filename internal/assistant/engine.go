// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/jeranaias/nbassist/internal/actions"
	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/notebook"
	"github.com/jeranaias/nbassist/internal/settings"
)

var (
	// ErrBusy is returned when a flow is started while another is running.
	ErrBusy = errors.New("assistant is busy")
	// ErrEmptyMessage is returned by SendMessage for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// DefaultFixConcurrency bounds parallel fix requests in FixAllErrors.
const DefaultFixConcurrency = 4

// =============================================================================
// STATUS
// =============================================================================

// Status is the engine's flow state.
type Status int

const (
	StatusIdle Status = iota
	StatusBusy
)

func (s Status) String() string {
	if s == StatusBusy {
		return "busy"
	}
	return "idle"
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Gateway is the backend surface the engine calls. *gateway.Client
// implements it.
type Gateway interface {
	FetchConfig(ctx context.Context) ([]gateway.BackendDescriptor, error)
	Generate(ctx context.Context, req gateway.GenerateRequest) (*gateway.GenerateResponse, error)
	FixError(ctx context.Context, req gateway.FixRequest) (*gateway.FixResponse, error)
}

var _ Gateway = (*gateway.Client)(nil)

// Options configures an Engine.
type Options struct {
	Gateway  Gateway
	Settings *settings.Manager
	// Document is the host document; nil means no document is open.
	Document notebook.Document
	// Actions performs apply/append/copy. Nil builds one over Document
	// without clipboards.
	Actions *actions.Dispatcher
	Logger  *slog.Logger

	// FixConcurrency bounds parallel fix requests (default 4, 1 = sequential).
	FixConcurrency int
	// FixRate limits fix requests per second; zero means unlimited.
	FixRate rate.Limit
	// FixBurst is the limiter burst (default 1).
	FixBurst int
}

// Snapshot is an immutable view of the engine for rendering.
type Snapshot struct {
	Status        Status
	Messages      []model.Message
	ActiveBackend string
	ActiveModel   string
	Backends      []gateway.BackendDescriptor
}

// Busy reports whether a flow is running.
func (s Snapshot) Busy() bool {
	return s.Status == StatusBusy
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the conversation state machine. It is safe for concurrent use.
type Engine struct {
	gw       Gateway
	settings *settings.Manager
	doc      notebook.Document
	actions  *actions.Dispatcher
	logger   *slog.Logger

	fixConcurrency int
	limiter        *rate.Limiter

	history *model.History
	busy    atomic.Bool

	mu       sync.RWMutex
	backends []gateway.BackendDescriptor

	subMu     sync.Mutex
	listeners map[int]func(Snapshot)
	nextSub   int
}

// New creates an engine. Gateway is required.
func New(opts Options) (*Engine, error) {
	if opts.Gateway == nil {
		return nil, errors.New("assistant: gateway is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mgr := opts.Settings
	if mgr == nil {
		mgr = settings.NewManager(settings.Options{Logger: logger})
	}
	disp := opts.Actions
	if disp == nil {
		disp = actions.NewDispatcher(opts.Document, nil, nil, logger)
	}
	conc := opts.FixConcurrency
	if conc <= 0 {
		conc = DefaultFixConcurrency
	}
	var limiter *rate.Limiter
	if opts.FixRate > 0 {
		burst := opts.FixBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.FixRate, burst)
	}

	return &Engine{
		gw:             opts.Gateway,
		settings:       mgr,
		doc:            opts.Document,
		actions:        disp,
		logger:         logger.With("component", "assistant"),
		fixConcurrency: conc,
		limiter:        limiter,
		history:        model.NewHistory(),
		listeners:      make(map[int]func(Snapshot)),
	}, nil
}

// Settings returns the selection manager.
func (e *Engine) Settings() *settings.Manager {
	return e.settings
}

// Document returns the attached document, or nil.
func (e *Engine) Document() notebook.Document {
	return e.doc
}

// =============================================================================
// OBSERVATION
// =============================================================================

// State returns a snapshot of the engine.
func (e *Engine) State() Snapshot {
	e.mu.RLock()
	backends := append([]gateway.BackendDescriptor(nil), e.backends...)
	e.mu.RUnlock()

	status := StatusIdle
	if e.busy.Load() {
		status = StatusBusy
	}
	active := e.settings.ActiveBackend()
	return Snapshot{
		Status:        status,
		Messages:      e.history.Messages(),
		ActiveBackend: active,
		ActiveModel:   e.resolveModel(active, backends),
		Backends:      backends,
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// change. fn may be called from several goroutines during FixAllErrors and
// must not block. The returned function unregisters it.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	e.subMu.Unlock()

	unsubSettings := e.settings.Subscribe(func(settings.Selection) { fn(e.State()) })
	return func() {
		unsubSettings()
		e.subMu.Lock()
		delete(e.listeners, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	snap := e.State()
	for _, fn := range fns {
		fn(snap)
	}
}

// append adds messages to the history and notifies listeners.
func (e *Engine) append(msgs ...model.Message) {
	e.history.Append(msgs...)
	e.notify()
}

// =============================================================================
// BUSY GUARD
// =============================================================================

// begin atomically moves Idle to Busy, or reports ErrBusy.
func (e *Engine) begin() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	e.notify()
	return nil
}

// end returns to Idle. Always deferred right after a successful begin.
func (e *Engine) end() {
	e.busy.Store(false)
	e.notify()
}

// =============================================================================
// BACKENDS
// =============================================================================

// RefreshBackends fetches the backend list. On failure the engine keeps an
// empty list and the error is logged and returned for diagnostics only.
func (e *Engine) RefreshBackends(ctx context.Context) error {
	backends, err := e.gw.FetchConfig(ctx)
	if err != nil {
		e.logger.Warn("failed to fetch backend config", "error", err)
		backends = nil
	}
	e.mu.Lock()
	e.backends = backends
	e.mu.Unlock()
	e.logger.Debug("backends loaded", "count", len(backends))
	e.notify()
	return err
}

// Backends returns the known backend descriptors.
func (e *Engine) Backends() []gateway.BackendDescriptor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]gateway.BackendDescriptor(nil), e.backends...)
}

// resolveModel returns the selected model for backend, falling back to the
// backend's default model.
func (e *Engine) resolveModel(backend string, backends []gateway.BackendDescriptor) string {
	fallback := ""
	if d, ok := gateway.FindBackend(backends, backend); ok {
		fallback = d.DefaultModel
	}
	return e.settings.Model(backend, fallback)
}

// providerName returns the display name of backend, or its ID.
func (e *Engine) providerName(backend string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if d, ok := gateway.FindBackend(e.backends, backend); ok {
		return d.DisplayName()
	}
	return backend
}

// =============================================================================
// ACTIONS
// =============================================================================

// ApplyCode replaces the active unit's text with code.
func (e *Engine) ApplyCode(code string) error {
	return e.actions.Apply(code)
}

// AppendCode inserts code as a new unit after the active one.
func (e *Engine) AppendCode(code string) error {
	return e.actions.AppendUnit(code)
}

// CopyCode copies code to the clipboard.
func (e *Engine) CopyCode(ctx context.Context, code string) error {
	return e.actions.Copy(ctx, code)
}
