// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/nbassist/internal/content"
	"github.com/jeranaias/nbassist/internal/errscan"
	"github.com/jeranaias/nbassist/internal/gateway"
	"github.com/jeranaias/nbassist/internal/model"
	"github.com/jeranaias/nbassist/internal/notebook"
	"github.com/jeranaias/nbassist/internal/util"
)

// User-visible texts.
const (
	msgNoErrors   = "No errors found in the notebook."
	msgFixFailed  = "Error: Failed to fix the code. Please try again."
	fmtSendFailed = "Error: Failed to get response from %s. Please check your API keys and connection."
	fmtFixingOne  = "Trying to fix error in cell %d: %s"
	fmtFixingMany = "Found %d errors in the notebook. Trying to fix them..."
	fmtFixedUnit  = "I've fixed the error in cell %d:\n\n```python\n%s\n```"
)

// =============================================================================
// SEND MESSAGE
// =============================================================================

// SendMessage appends text as a user message and asks the active backend for
// a reply. Backend failures become an error message in the history; the
// returned error is only ErrBusy or ErrEmptyMessage.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	prior := e.history.Messages()
	e.append(model.NewUserMessage(text))

	backend := e.settings.ActiveBackend()
	req := gateway.GenerateRequest{
		Backend:         backend,
		Model:           e.resolveModel(backend, e.Backends()),
		Prompt:          text,
		Messages:        toChatMessages(prior),
		NotebookContent: notebook.Snapshot(e.doc),
	}

	resp, err := e.gw.Generate(ctx, req)
	if err != nil {
		e.logger.Warn("generate failed", "backend", backend, "error", err)
		e.append(model.NewErrorMessage(fmt.Sprintf(fmtSendFailed, backend)))
		return nil
	}

	msg := model.NewAssistantMessage(resp.Content,
		resp.HasCode || content.HasCode(resp.Content),
		resp.Model, resp.Provider)
	msg.Error = resp.Error
	e.append(msg)
	return nil
}

// toChatMessages strips the history down to role and content. System
// notices and failure reports are kept so the backend sees what a fix
// reply refers to.
func toChatMessages(msgs []model.Message) []gateway.ChatMessage {
	out := make([]gateway.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, gateway.ChatMessage{Role: m.Role.String(), Content: m.Content})
	}
	return out
}

// =============================================================================
// FIX ERRORS
// =============================================================================

// fixTarget captures the selection a fix request is made under.
type fixTarget struct {
	backend  string
	model    string
	provider string
}

func (e *Engine) currentTarget() fixTarget {
	backend := e.settings.ActiveBackend()
	return fixTarget{
		backend:  backend,
		model:    e.resolveModel(backend, e.Backends()),
		provider: e.providerName(backend),
	}
}

// FixLastError requests a fix for the last erroring unit.
func (e *Engine) FixLastError(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	records := errscan.Extract(e.doc)
	if len(records) == 0 {
		e.append(model.NewSystemMessage(msgNoErrors))
		return nil
	}
	last := records[len(records)-1]
	e.append(model.NewSystemMessage(fmt.Sprintf(fmtFixingOne, last.UnitIndex+1, last.Message)))
	e.fixOne(ctx, last, e.currentTarget())
	return nil
}

// FixAllErrors requests a fix for every erroring unit. Requests run
// concurrently up to the configured limit; each produces its own message and
// one failure does not stop the others. The whole batch is one flow.
func (e *Engine) FixAllErrors(ctx context.Context) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	records := errscan.Extract(e.doc)
	if len(records) == 0 {
		e.append(model.NewSystemMessage(msgNoErrors))
		return nil
	}
	e.append(model.NewSystemMessage(fmt.Sprintf(fmtFixingMany, len(records))))

	target := e.currentTarget()
	var g errgroup.Group
	g.SetLimit(e.fixConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			e.fixOne(ctx, rec, target)
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// fixOne performs one fix request and appends exactly one message.
func (e *Engine) fixOne(ctx context.Context, rec errscan.Record, t fixTarget) {
	log := e.logger.With("unit", rec.UnitIndex, "backend", t.backend)
	log.Debug("requesting fix", "error", util.FirstLine(rec.Message))

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			log.Warn("fix request not sent", "error", err)
			e.append(model.NewErrorMessage(msgFixFailed))
			return
		}
	}

	resp, err := e.gw.FixError(ctx, gateway.FixRequest{
		Backend: t.backend,
		Model:   t.model,
		Code:    rec.SourceCode,
		Errors:  []gateway.ErrorDetail{{Message: rec.Message}},
	})
	if err == nil && strings.TrimSpace(resp.FixedCode) == "" {
		err = fmt.Errorf("backend returned no code")
	}
	if err != nil {
		log.Warn("fix failed", "error", err)
		e.append(model.NewErrorMessage(msgFixFailed))
		return
	}

	e.append(model.NewAssistantMessage(
		fmt.Sprintf(fmtFixedUnit, rec.UnitIndex+1, resp.FixedCode),
		true, t.model, t.provider))
}

// FixedUnit reports the 0-based unit index and code of a successful fix
// reply appended by FixLastError or FixAllErrors.
func FixedUnit(msg model.Message) (int, string, bool) {
	if msg.Role != model.RoleAssistant || msg.Error {
		return 0, "", false
	}
	var n int
	if _, err := fmt.Sscanf(msg.Content, "I've fixed the error in cell %d:", &n); err != nil || n < 1 {
		return 0, "", false
	}
	code := content.Code(msg.Content)
	if len(code) == 0 {
		return 0, "", false
	}
	return n - 1, code[0], true
}
