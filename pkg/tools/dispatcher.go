// DotVoice - voice-driven personal assistant core
// License: MIT
//
// Copyright (c) 2026 DotVoice contributors

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
)

var ErrToolNotFound = errors.New("tool not found")

// ConfirmFunc approves a state-changing action. It may be called from any
// goroutine that dispatches tool calls.
type ConfirmFunc func(ctx context.Context, kind, detail string) bool

// AuditSink durably records dispatched calls.
type AuditSink interface {
	AppendAudit(ctx context.Context, rec journal.AuditRecord) error
}

type DispatcherOptions struct {
	Confirm ConfirmFunc
	Audit   AuditSink
	// OnAudit observes every record after it has been handed to the sink.
	OnAudit func(journal.AuditRecord)
	Now     func() time.Time
}

// Dispatcher resolves model tool calls against the registry, applying the
// confirm gate and writing an audit record per call. Dispatch never panics
// and always returns text for the transcript.
type Dispatcher struct {
	registry *ToolRegistry
	audit    AuditSink
	onAudit  func(journal.AuditRecord)
	now      func() time.Time

	mu      sync.RWMutex
	confirm ConfirmFunc
}

func NewDispatcher(registry *ToolRegistry, opts DispatcherOptions) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		registry: registry,
		audit:    opts.Audit,
		onAudit:  opts.OnAudit,
		now:      opts.Now,
		confirm:  opts.Confirm,
	}
}

// SetConfirmHook replaces the confirm hook. nil allows every action.
func (d *Dispatcher) SetConfirmHook(fn ConfirmFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirm = fn
}

func (d *Dispatcher) confirmHook() ConfirmFunc {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.confirm
}

func (d *Dispatcher) Definitions() []providers.ToolDefinition {
	return d.registry.ToProviderDefs()
}

func (d *Dispatcher) Registry() *ToolRegistry {
	return d.registry
}

// Dispatch runs one tool call and returns the text fed back to the model.
func (d *Dispatcher) Dispatch(ctx context.Context, call providers.ToolCall) string {
	name := CallName(call)
	args, err := callArguments(call)
	if err != nil {
		d.record(ctx, name, err.Error(), journal.StatusFailed)
		return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
	}

	tool, ok := d.registry.Get(name)
	if !ok {
		d.record(ctx, name, "unknown tool", journal.StatusMissing)
		return fmt.Sprintf("Error: tool %q not found.", name)
	}

	kind, detail := name, describeArgs(args)
	if confirmable, ok := tool.(ConfirmableTool); ok {
		if k, dt, needed := confirmable.ConfirmAction(args); needed {
			kind, detail = k, dt
			if hook := d.confirmHook(); hook != nil && !d.safeConfirm(ctx, hook, kind, detail) {
				d.record(ctx, kind, detail, journal.StatusBlocked)
				return fmt.Sprintf("Action canceled: %s (%s) was not approved.", kind, detail)
			}
		}
	}

	result := d.execute(ctx, name, args)
	if result.IsError {
		d.record(ctx, kind, detail, journal.StatusFailed)
		return result.ForLLM
	}
	d.record(ctx, kind, detail, journal.StatusExecuted)
	return result.ForLLM
}

func (d *Dispatcher) execute(ctx context.Context, name string, args map[string]interface{}) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("tool", "Tool panicked", map[string]interface{}{
				"tool":  name,
				"panic": fmt.Sprint(rec),
			})
			err := fmt.Errorf("tool %s panicked: %v", name, rec)
			result = ErrorResult(fmt.Sprintf("Error: %s failed: %v", name, rec)).WithError(err)
		}
	}()
	return d.registry.Execute(ctx, name, args)
}

// safeConfirm treats a panicking hook as a refusal.
func (d *Dispatcher) safeConfirm(ctx context.Context, hook ConfirmFunc, kind, detail string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("tool", "Confirm hook panicked", map[string]interface{}{
				"kind":  kind,
				"panic": fmt.Sprint(rec),
			})
			ok = false
		}
	}()
	return hook(ctx, kind, detail)
}

func (d *Dispatcher) record(ctx context.Context, kind, detail, status string) {
	rec := journal.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: d.now(),
		Kind:      kind,
		Detail:    detail,
		Status:    status,
	}
	if d.audit != nil {
		if err := d.audit.AppendAudit(ctx, rec); err != nil {
			logger.WarnCF("tool", "Failed to write audit record", map[string]interface{}{
				"kind":   kind,
				"status": status,
				"error":  err.Error(),
			})
		}
	}
	if d.onAudit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.WarnCF("tool", "Audit observer panicked", map[string]interface{}{
						"panic": fmt.Sprint(r),
					})
				}
			}()
			d.onAudit(rec)
		}()
	}
}

// CallName returns the function name of call in either wire or decoded form.
func CallName(call providers.ToolCall) string {
	if call.Name != "" {
		return call.Name
	}
	if call.Function != nil {
		return call.Function.Name
	}
	return ""
}

func callArguments(call providers.ToolCall) (map[string]interface{}, error) {
	if call.Arguments != nil {
		return call.Arguments, nil
	}
	if call.Function == nil || strings.TrimSpace(call.Function.Arguments) == "" {
		return map[string]interface{}{}, nil
	}
	args := map[string]interface{}{}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// describeArgs renders args compactly for the audit detail, secrets redacted.
func describeArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(sanitizeToolArgs(args))
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
