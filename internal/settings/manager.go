// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce coalesces bursts of changes (typing a key) into one write.
const DefaultDebounce = 250 * time.Millisecond

// Options configures a Manager.
type Options struct {
	Store  ConfigStore
	Logger *slog.Logger

	// Sealer, when set, seals credentials before they are written and opens
	// sealed credentials on load.
	Sealer *Sealer

	// Debounce delays background writes. Zero uses DefaultDebounce; a
	// negative value writes immediately in the background.
	Debounce time.Duration

	// Initial replaces DefaultSelection as the pre-load state.
	Initial *Selection
}

// Manager owns the selection. It is safe for concurrent use.
type Manager struct {
	store    ConfigStore
	sealer   *Sealer
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	sel     Selection
	version uint64
	timer   *time.Timer
	closed  bool

	// writeMu serializes store writes; written is the last persisted version.
	writeMu  sync.Mutex
	written  uint64
	inflight sync.WaitGroup

	subMu     sync.Mutex
	listeners map[int]func(Selection)
	nextSub   int
}

// NewManager creates a manager holding the default selection.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	sel := DefaultSelection()
	if opts.Initial != nil {
		sel = opts.Initial.Clone()
	}
	return &Manager{
		store:     store,
		sealer:    opts.Sealer,
		logger:    logger.With("component", "settings"),
		debounce:  debounce,
		sel:       sel,
		listeners: make(map[int]func(Selection)),
	}
}

// =============================================================================
// READ
// =============================================================================

// Selection returns a copy of the current selection.
func (m *Manager) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.Clone()
}

// ActiveBackend returns the active backend ID.
func (m *Manager) ActiveBackend() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.ActiveBackendID
}

// Model returns the chosen model for backend, or fallback.
func (m *Manager) Model(backend, fallback string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.Model(backend, fallback)
}

// Credential returns the credential for backend.
func (m *Manager) Credential(backend string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.Credential(backend)
}

// Subscribe registers fn to receive the selection after every change,
// including loads. The returned function unregisters it.
func (m *Manager) Subscribe(fn func(Selection)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.listeners, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) notify(sel Selection) {
	m.subMu.Lock()
	fns := make([]func(Selection), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()
	for _, fn := range fns {
		fn(sel.Clone())
	}
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the three setting keys. Missing or malformed values keep the
// current in-memory values; nothing here is fatal.
func (m *Manager) Load(ctx context.Context) {
	var creds, models map[string]string
	var active string

	credOK := m.readKey(ctx, KeyCredentials, &creds)
	modelsOK := m.readKey(ctx, KeySelectedModels, &models)
	activeOK := m.readKey(ctx, KeyActiveBackend, &active)

	if credOK {
		creds = m.openCredentials(creds)
	}

	m.mu.Lock()
	if credOK {
		for k, v := range creds {
			m.sel.CredentialByBackend[k] = v
		}
	}
	if modelsOK {
		for k, v := range models {
			if v != "" {
				m.sel.ModelByBackend[k] = v
			}
		}
	}
	if activeOK && active != "" {
		m.sel.ActiveBackendID = active
	}
	sel := m.sel.Clone()
	m.mu.Unlock()

	m.logger.Info("settings loaded",
		"active_backend", sel.ActiveBackendID,
		"credentials_for", sel.ConfiguredCredentials())
	m.notify(sel)
}

// readKey decodes key into dst and reports whether it was usable.
func (m *Manager) readKey(ctx context.Context, key string, dst any) bool {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Warn("failed to read setting", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		m.logger.Warn("ignoring malformed setting", "key", key, "error", err)
		return false
	}
	return true
}

func (m *Manager) openCredentials(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for backend, v := range in {
		if !IsSealed(v) {
			out[backend] = v
			continue
		}
		if m.sealer == nil {
			m.logger.Warn("credential is sealed but no passphrase is configured", "backend", backend)
			continue
		}
		plain, err := m.sealer.Open(v)
		if err != nil {
			m.logger.Warn("failed to open sealed credential", "backend", backend, "error", err)
			continue
		}
		out[backend] = plain
	}
	return out
}

// =============================================================================
// MUTATE
// =============================================================================

// SetActiveBackend makes id the active backend.
func (m *Manager) SetActiveBackend(id string) {
	m.update(func(s *Selection) { s.ActiveBackendID = id })
}

// SetModel records the model chosen for backend.
func (m *Manager) SetModel(backend, model string) {
	m.update(func(s *Selection) { s.ModelByBackend[backend] = model })
}

// SetCredential records the credential for backend.
func (m *Manager) SetCredential(backend, credential string) {
	m.update(func(s *Selection) { s.CredentialByBackend[backend] = credential })
}

func (m *Manager) update(fn func(*Selection)) {
	m.mu.Lock()
	fn(&m.sel)
	m.version++
	sel := m.sel.Clone()
	m.schedule()
	m.mu.Unlock()
	m.notify(sel)
}

// schedule arms the background write. Caller holds m.mu.
func (m *Manager) schedule() {
	if m.closed {
		return
	}
	if m.debounce < 0 {
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			m.persist(context.Background())
		}()
		return
	}
	// A stopped timer never runs its func, so release its slot here.
	if m.timer != nil && m.timer.Stop() {
		m.inflight.Done()
	}
	m.inflight.Add(1)
	m.timer = time.AfterFunc(m.debounce, func() {
		defer m.inflight.Done()
		m.persist(context.Background())
	})
}

// =============================================================================
// PERSIST
// =============================================================================

// persist writes all three keys for the latest version and logs failures.
func (m *Manager) persist(ctx context.Context) {
	if err := m.write(ctx); err != nil {
		m.logger.Error("failed to save settings", "error", err)
	}
}

func (m *Manager) write(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	sel := m.sel.Clone()
	version := m.version
	m.mu.Unlock()

	if version <= m.written {
		return nil
	}

	creds, err := m.sealCredentials(sel.CredentialByBackend)
	if err != nil {
		return err
	}
	values := []struct {
		key string
		v   any
	}{
		{KeyCredentials, creds},
		{KeySelectedModels, sel.ModelByBackend},
		{KeyActiveBackend, sel.ActiveBackendID},
	}
	var errs []string
	for _, kv := range values {
		raw, err := json.Marshal(kv.v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", kv.key, err))
			continue
		}
		if err := m.store.Set(ctx, kv.key, raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", kv.key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("write settings: %s", strings.Join(errs, "; "))
	}
	m.written = version
	m.logger.Debug("settings saved", "version", version)
	return nil
}

func (m *Manager) sealCredentials(in map[string]string) (map[string]string, error) {
	if m.sealer == nil {
		return in, nil
	}
	out := make(map[string]string, len(in))
	for backend, v := range in {
		if v == "" {
			out[backend] = ""
			continue
		}
		sealed, err := m.sealer.Seal(v)
		if err != nil {
			return nil, fmt.Errorf("seal credential for %s: %w", backend, err)
		}
		out[backend] = sealed
	}
	return out, nil
}

// Flush cancels any pending debounce and writes synchronously, returning the
// write error. Use it where the caller can report the failure (CLI).
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil && m.timer.Stop() {
		m.inflight.Done()
	}
	m.timer = nil
	m.mu.Unlock()
	return m.write(ctx)
}

// Close flushes pending changes and stops background writes.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Flush(ctx)
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.inflight.Wait()
	return err
}
