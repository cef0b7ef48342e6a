// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/jeranaias/nbassist/internal/actions"
	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/notebook"
	"github.com/jeranaias/nbassist/internal/settings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// FAKE GATEWAY
// =============================================================================

type fakeGateway struct {
	mu sync.Mutex

	backends  []gateway.BackendDescriptor
	configErr error

	generate func(gateway.GenerateRequest) (*gateway.GenerateResponse, error)
	fix      func(gateway.FixRequest) (*gateway.FixResponse, error)

	generateReqs []gateway.GenerateRequest
	fixReqs      []gateway.FixRequest
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
}

func (f *fakeGateway) FetchConfig(context.Context) ([]gateway.BackendDescriptor, error) {
	return f.backends, f.configErr
}

func (f *fakeGateway) Generate(_ context.Context, req gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
	f.mu.Lock()
	f.generateReqs = append(f.generateReqs, req)
	f.mu.Unlock()
	if f.generate == nil {
		return &gateway.GenerateResponse{Content: "ok", Model: "m", Provider: "p"}, nil
	}
	return f.generate(req)
}

func (f *fakeGateway) FixError(_ context.Context, req gateway.FixRequest) (*gateway.FixResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	f.mu.Lock()
	f.fixReqs = append(f.fixReqs, req)
	f.mu.Unlock()
	if f.fix == nil {
		return &gateway.FixResponse{FixedCode: "fixed(" + req.Code + ")"}, nil
	}
	return f.fix(req)
}

var testBackends = []gateway.BackendDescriptor{
	{ID: "openai", Name: "OpenAI", DefaultModel: "gpt-4o", Models: []gateway.ModelInfo{{ID: "gpt-4o", Name: "GPT-4o"}}},
	{ID: "ollama", Name: "Ollama (Local)", DefaultModel: "llama3", Local: true},
}

func errUnit(text, name, value string) notebook.Unit {
	return notebook.Unit{Kind: notebook.KindCode, Text: text, Results: []notebook.Result{
		{Kind: notebook.ResultError, ErrorName: name, ErrorValue: value},
	}}
}

func newEngine(t *testing.T, gw *fakeGateway, doc notebook.Document, opts ...func(*Options)) *Engine {
	t.Helper()
	o := Options{
		Gateway:  gw,
		Settings: settings.NewManager(settings.Options{Debounce: time.Hour}),
		Document: doc,
	}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := New(o)
	require.NoError(t, err)
	return e
}

func lastMessage(t *testing.T, e *Engine) model.Message {
	t.Helper()
	msgs := e.State().Messages
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// =============================================================================
// CONSTRUCTION AND BACKENDS
// =============================================================================

func TestNew_RequiresGateway(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRefreshBackends(t *testing.T) {
	gw := &fakeGateway{backends: testBackends}
	e := newEngine(t, gw, nil)

	require.NoError(t, e.RefreshBackends(context.Background()))
	assert.Len(t, e.Backends(), 2)

	st := e.State()
	assert.Equal(t, "openai", st.ActiveBackend)
	assert.Equal(t, "gpt-4o", st.ActiveModel)
	assert.Empty(t, st.Messages, "config problems never become chat messages")

	gw.configErr = errors.New("unreachable")
	assert.Error(t, e.RefreshBackends(context.Background()))
	assert.Empty(t, e.Backends())
	assert.Empty(t, e.State().Messages)
}

// =============================================================================
// SEND MESSAGE
// =============================================================================

func TestSendMessage_Success(t *testing.T) {
	gw := &fakeGateway{generate: func(req gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		return &gateway.GenerateResponse{Content: "Use:\n```python\nx=1\n```", Model: "gpt-4o", Provider: "OpenAI"}, nil
	}}
	doc := notebook.New(notebook.NewCodeUnit("x = 0"))
	e := newEngine(t, gw, doc)

	require.NoError(t, e.SendMessage(context.Background(), "help"))

	msgs := e.State().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "help", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].HasCode, "fenced code marks the reply as having code")
	assert.Equal(t, "gpt-4o", msgs[1].Model)
	assert.Equal(t, "OpenAI", msgs[1].Provider)
	assert.False(t, msgs[1].Error)
	assert.Equal(t, StatusIdle, e.State().Status)

	require.Len(t, gw.generateReqs, 1)
	req := gw.generateReqs[0]
	assert.Equal(t, "openai", req.Backend)
	assert.Equal(t, "help", req.Prompt)
	assert.Empty(t, req.Messages, "history before the new message is forwarded")
	require.Len(t, req.NotebookContent.Cells, 1)
	assert.Equal(t, "x = 0", req.NotebookContent.Cells[0].Source)
}

func TestSendMessage_ForwardsPriorConversation(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, nil)

	require.NoError(t, e.SendMessage(context.Background(), "first"))
	require.NoError(t, e.SendMessage(context.Background(), "second"))

	require.Len(t, gw.generateReqs, 2)
	assert.Empty(t, gw.generateReqs[0].Messages)
	assert.Equal(t, []gateway.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "ok"},
	}, gw.generateReqs[1].Messages)
}

func TestSendMessage_ForwardsNoticesAndFailures(t *testing.T) {
	calls := 0
	gw := &fakeGateway{backends: testBackends, generate: func(gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return &gateway.GenerateResponse{Content: "ok"}, nil
	}}
	doc := notebook.New(errUnit("a()", "NameError", "name 'a' is not defined"))
	e := newEngine(t, gw, doc)
	require.NoError(t, e.RefreshBackends(context.Background()))

	require.NoError(t, e.FixLastError(context.Background()))
	require.NoError(t, e.SendMessage(context.Background(), "hello"))
	require.NoError(t, e.SendMessage(context.Background(), "why?"))

	require.Len(t, gw.generateReqs, 2)
	assert.Equal(t, []gateway.ChatMessage{
		{Role: "system", Content: "Trying to fix error in cell 1: NameError: name 'a' is not defined"},
		{Role: "assistant", Content: "I've fixed the error in cell 1:\n\n```python\nfixed(a())\n```"},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "Error: Failed to get response from openai. Please check your API keys and connection."},
	}, gw.generateReqs[1].Messages)
}

func TestSendMessage_FailureAlwaysEndsIdle(t *testing.T) {
	gw := &fakeGateway{generate: func(gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		return nil, &gateway.Error{Type: gateway.ErrTypeStatus, Status: 401, Message: "bad key"}
	}}
	e := newEngine(t, gw, nil)
	e.Settings().SetActiveBackend("anthropic")

	require.NoError(t, e.SendMessage(context.Background(), "hello"))

	st := e.State()
	assert.Equal(t, StatusIdle, st.Status)
	require.Len(t, st.Messages, 2)
	last := st.Messages[1]
	assert.True(t, last.Error)
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "Error: Failed to get response from anthropic. Please check your API keys and connection.", last.Content)
}

func TestSendMessage_PanicStillEndsIdle(t *testing.T) {
	gw := &fakeGateway{generate: func(gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		panic("transport exploded")
	}}
	e := newEngine(t, gw, nil)

	assert.Panics(t, func() { _ = e.SendMessage(context.Background(), "hello") })
	assert.Equal(t, StatusIdle, e.State().Status)
}

func TestSendMessage_InBandErrorKept(t *testing.T) {
	gw := &fakeGateway{generate: func(gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		return &gateway.GenerateResponse{Content: "Error generating response: quota", Error: true, Provider: "Google"}, nil
	}}
	e := newEngine(t, gw, nil)
	require.NoError(t, e.SendMessage(context.Background(), "q"))

	last := lastMessage(t, e)
	assert.True(t, last.Error)
	assert.Equal(t, "Error generating response: quota", last.Content)
}

func TestSendMessage_Empty(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, nil)
	assert.ErrorIs(t, e.SendMessage(context.Background(), "  \n"), ErrEmptyMessage)
	assert.Empty(t, e.State().Messages)
	assert.Empty(t, gw.generateReqs)
}

func TestSendMessage_RejectsWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	gw := &fakeGateway{generate: func(gateway.GenerateRequest) (*gateway.GenerateResponse, error) {
		close(started)
		<-release
		return &gateway.GenerateResponse{Content: "done"}, nil
	}}
	e := newEngine(t, gw, notebook.New(errUnit("x", "E", "v")))

	done := make(chan error, 1)
	go func() { done <- e.SendMessage(context.Background(), "slow") }()
	<-started

	assert.True(t, e.State().Busy())
	assert.ErrorIs(t, e.SendMessage(context.Background(), "again"), ErrBusy)
	assert.ErrorIs(t, e.FixLastError(context.Background()), ErrBusy)
	assert.ErrorIs(t, e.FixAllErrors(context.Background()), ErrBusy)
	assert.Len(t, e.State().Messages, 1, "rejected flows leave no trace")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusIdle, e.State().Status)
	assert.Len(t, e.State().Messages, 2)
}

// =============================================================================
// FIX LAST ERROR
// =============================================================================

func TestFixLastError_NoErrors(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New(notebook.NewCodeUnit("ok")))

	require.NoError(t, e.FixLastError(context.Background()))

	msgs := e.State().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "No errors found in the notebook.", msgs[0].Content)
	assert.Empty(t, gw.fixReqs)
}

func TestFixLastError_TargetsHighestIndex(t *testing.T) {
	gw := &fakeGateway{backends: testBackends}
	doc := notebook.New(
		errUnit("a()", "NameError", "a"),
		notebook.NewCodeUnit("fine"),
		errUnit("int('x')", "ValueError", "bad input"),
	)
	e := newEngine(t, gw, doc)
	require.NoError(t, e.RefreshBackends(context.Background()))

	require.NoError(t, e.FixLastError(context.Background()))

	require.Len(t, gw.fixReqs, 1)
	assert.Equal(t, gateway.FixRequest{
		Backend: "openai",
		Model:   "gpt-4o",
		Code:    "int('x')",
		Errors:  []gateway.ErrorDetail{{Message: "ValueError: bad input"}},
	}, gw.fixReqs[0])

	msgs := e.State().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "Trying to fix error in cell 3: ValueError: bad input", msgs[0].Content)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)

	fixed := msgs[1]
	assert.Equal(t, "I've fixed the error in cell 3:\n\n```python\nfixed(int('x'))\n```", fixed.Content)
	assert.True(t, fixed.HasCode)
	assert.Equal(t, "gpt-4o", fixed.Model)
	assert.Equal(t, "OpenAI", fixed.Provider)
}

func TestFixedUnit(t *testing.T) {
	gw := &fakeGateway{backends: testBackends}
	doc := notebook.New(
		errUnit("a()", "NameError", "a"),
		errUnit("b()", "NameError", "b"),
	)
	e := newEngine(t, gw, doc)
	require.NoError(t, e.FixAllErrors(context.Background()))

	found := map[int]string{}
	for _, msg := range e.State().Messages {
		if idx, code, ok := FixedUnit(msg); ok {
			found[idx] = code
		}
	}
	assert.Equal(t, map[int]string{0: "fixed(a())", 1: "fixed(b())"}, found)

	for _, msg := range []model.Message{
		model.NewUserMessage("I've fixed the error in cell 1:\n\n```python\nx\n```"),
		model.NewErrorMessage(msgFixFailed),
		model.NewAssistantMessage("I've fixed the error in cell 2: nothing", false, "", ""),
		model.NewAssistantMessage("plain reply", false, "", ""),
	} {
		_, _, ok := FixedUnit(msg)
		assert.False(t, ok, msg.Content)
	}
}

func TestFixLastError_ProviderFallsBackToID(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New(errUnit("x", "E", "v")))
	e.Settings().SetActiveBackend("custom")
	e.Settings().SetModel("custom", "m1")

	require.NoError(t, e.FixLastError(context.Background()))
	fixed := lastMessage(t, e)
	assert.Equal(t, "custom", fixed.Provider)
	assert.Equal(t, "m1", fixed.Model)
}

func TestFixLastError_Failure(t *testing.T) {
	gw := &fakeGateway{fix: func(gateway.FixRequest) (*gateway.FixResponse, error) {
		return nil, errors.New("boom")
	}}
	e := newEngine(t, gw, notebook.New(errUnit("x", "E", "v")))

	require.NoError(t, e.FixLastError(context.Background()))
	last := lastMessage(t, e)
	assert.True(t, last.Error)
	assert.Equal(t, "Error: Failed to fix the code. Please try again.", last.Content)
	assert.Equal(t, StatusIdle, e.State().Status)
}

func TestFixLastError_EmptyFixIsFailure(t *testing.T) {
	gw := &fakeGateway{fix: func(gateway.FixRequest) (*gateway.FixResponse, error) {
		return &gateway.FixResponse{FixedCode: "  "}, nil
	}}
	e := newEngine(t, gw, notebook.New(errUnit("x", "E", "v")))
	require.NoError(t, e.FixLastError(context.Background()))
	assert.True(t, lastMessage(t, e).Error)
}

func TestFixLastError_NoDocument(t *testing.T) {
	e := newEngine(t, &fakeGateway{}, nil)
	require.NoError(t, e.FixLastError(context.Background()))
	assert.Equal(t, "No errors found in the notebook.", lastMessage(t, e).Content)
}

// =============================================================================
// FIX ALL ERRORS
// =============================================================================

func TestFixAllErrors_OneMessagePerRecord(t *testing.T) {
	gw := &fakeGateway{fix: func(req gateway.FixRequest) (*gateway.FixResponse, error) {
		if req.Code == "b()" {
			return nil, errors.New("rate limited")
		}
		return &gateway.FixResponse{FixedCode: "ok_" + req.Code}, nil
	}}
	doc := notebook.New(
		errUnit("a()", "NameError", "a"),
		errUnit("b()", "NameError", "b"),
		notebook.NewMarkdownUnit("notes"),
		errUnit("c()", "NameError", "c"),
	)
	e := newEngine(t, gw, doc)

	require.NoError(t, e.FixAllErrors(context.Background()))

	msgs := e.State().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "Found 3 errors in the notebook. Trying to fix them...", msgs[0].Content)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)

	var fixedContents []string
	failures := 0
	for _, m := range msgs[1:] {
		assert.Equal(t, model.RoleAssistant, m.Role)
		if m.Error {
			failures++
			continue
		}
		fixedContents = append(fixedContents, m.Content)
	}
	assert.Equal(t, 1, failures, "the failing record is isolated")
	assert.ElementsMatch(t, []string{
		"I've fixed the error in cell 1:\n\n```python\nok_a()\n```",
		"I've fixed the error in cell 4:\n\n```python\nok_c()\n```",
	}, fixedContents)
	assert.Equal(t, StatusIdle, e.State().Status)
}

func TestFixAllErrors_NoErrors(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New())
	require.NoError(t, e.FixAllErrors(context.Background()))
	assert.Equal(t, "No errors found in the notebook.", lastMessage(t, e).Content)
	assert.Empty(t, gw.fixReqs)
}

func TestFixAllErrors_RespectsConcurrencyLimit(t *testing.T) {
	gw := &fakeGateway{fix: func(req gateway.FixRequest) (*gateway.FixResponse, error) {
		time.Sleep(20 * time.Millisecond)
		return &gateway.FixResponse{FixedCode: "x"}, nil
	}}
	units := make([]notebook.Unit, 8)
	for i := range units {
		units[i] = errUnit(fmt.Sprintf("f%d()", i), "E", "v")
	}
	e := newEngine(t, gw, notebook.New(units...), func(o *Options) { o.FixConcurrency = 2 })

	require.NoError(t, e.FixAllErrors(context.Background()))
	assert.Len(t, gw.fixReqs, 8)
	assert.LessOrEqual(t, gw.maxInFlight.Load(), int32(2))
	assert.Len(t, e.State().Messages, 9)
}

func TestFixAllErrors_Sequential(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New(
		errUnit("a", "E", "1"), errUnit("b", "E", "2"), errUnit("c", "E", "3"),
	), func(o *Options) { o.FixConcurrency = 1 })

	require.NoError(t, e.FixAllErrors(context.Background()))
	require.Len(t, gw.fixReqs, 3)
	assert.Equal(t, int32(1), gw.maxInFlight.Load())
	for i, code := range []string{"a", "b", "c"} {
		assert.Equal(t, code, gw.fixReqs[i].Code, "sequential mode keeps extraction order")
	}
}

func TestFixAllErrors_RateLimitCancelled(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New(
		errUnit("a", "E", "1"), errUnit("b", "E", "2"),
	), func(o *Options) {
		o.FixRate = rate.Every(time.Hour)
		o.FixBurst = 1
		o.FixConcurrency = 1
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.FixAllErrors(ctx))

	// The first request uses the burst token; the second cannot get one.
	assert.Len(t, gw.fixReqs, 1)
	msgs := e.State().Messages
	require.Len(t, msgs, 3)
	assert.True(t, msgs[2].Error)
}

// =============================================================================
// OBSERVATION
// =============================================================================

func TestSubscribe_SeesBusyThenIdle(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, nil)

	var mu sync.Mutex
	var statuses []Status
	cancel := e.Subscribe(func(s Snapshot) {
		mu.Lock()
		statuses = append(statuses, s.Status)
		mu.Unlock()
	})

	require.NoError(t, e.SendMessage(context.Background(), "hi"))
	cancel()
	require.NoError(t, e.SendMessage(context.Background(), "unobserved"))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.Equal(t, StatusBusy, statuses[0])
	assert.Equal(t, StatusIdle, statuses[len(statuses)-1])
	assert.Len(t, statuses, 4, "begin, user message, reply, end")
}

func TestSubscribe_SettingsChangesNotify(t *testing.T) {
	e := newEngine(t, &fakeGateway{}, nil)
	var got []string
	cancel := e.Subscribe(func(s Snapshot) { got = append(got, s.ActiveBackend) })
	defer cancel()

	e.Settings().SetActiveBackend("ollama")
	assert.Equal(t, []string{"ollama"}, got)
}

func TestHistoryIsAppendOnlyAcrossFlows(t *testing.T) {
	gw := &fakeGateway{}
	e := newEngine(t, gw, notebook.New(errUnit("x", "E", "v")))

	require.NoError(t, e.SendMessage(context.Background(), "one"))
	before := e.State().Messages
	require.NoError(t, e.FixAllErrors(context.Background()))
	after := e.State().Messages

	require.Greater(t, len(after), len(before))
	assert.Equal(t, before, after[:len(before)])
}

// =============================================================================
// ACTIONS
// =============================================================================

func TestActions_DelegateToDispatcher(t *testing.T) {
	doc := notebook.New(notebook.NewCodeUnit("old"))
	var copied string
	disp := actions.NewDispatcher(doc, actions.ClipboardFunc(func(_ context.Context, s string) error {
		copied = s
		return nil
	}), nil, nil)
	e := newEngine(t, &fakeGateway{}, doc, func(o *Options) { o.Actions = disp })

	require.NoError(t, e.ApplyCode("new"))
	require.NoError(t, e.AppendCode("extra"))
	require.NoError(t, e.CopyCode(context.Background(), "clip"))

	units := doc.Units()
	require.Len(t, units, 2)
	assert.Equal(t, "new", units[0].Text)
	assert.Equal(t, "extra", units[1].Text)
	assert.Equal(t, 1, doc.ActiveIndex())
	assert.Equal(t, "clip", copied)
}

func TestActions_WithoutDocument(t *testing.T) {
	e := newEngine(t, &fakeGateway{}, nil)
	assert.ErrorIs(t, e.ApplyCode("x"), actions.ErrNoDocument)
	assert.ErrorContains(t, e.CopyCode(context.Background(), "x"), "clipboard")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle.String())
	assert.Equal(t, "busy", StatusBusy.String())
}
