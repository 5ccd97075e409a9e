// DotVoice - voice-driven personal assistant core
// License: MIT
//
// Copyright (c) 2026 DotVoice contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotsetgreg/dotvoice/pkg/bus"
	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/memory"
	"github.com/dotsetgreg/dotvoice/pkg/profile"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

type TurnState int32

const (
	StateStandby TurnState = iota
	StateListening
	StateThinking
	StateDispatching
	StateSpeaking
	StateTerminating
)

func (s TurnState) String() string {
	switch s {
	case StateStandby:
		return "standby"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateDispatching:
		return "dispatching"
	case StateSpeaking:
		return "speaking"
	case StateTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

const (
	terminationReply = "Understood. Returning to standby."
	contextResetText = "Context corrupted. Rebooting memory."
	textTurnPoll     = 50 * time.Millisecond
)

// DefaultTerminationPhrases end continuous mode when found anywhere in the
// lowercased input.
func DefaultTerminationPhrases() []string {
	return []string{"stop listening", "go to sleep", "terminate session", "thank you mavrick", "that's all"}
}

// Journal receives the per-turn records. *journal.SQLiteStore satisfies it.
type Journal interface {
	AppendHistory(ctx context.Context, text, source string) error
	AppendSessionLog(ctx context.Context, kind, message string) error
	RecordUsage(ctx context.Context, rec journal.UsageRecord) error
}

type Deps struct {
	Provider   providers.LLMProvider
	Memory     *memory.Store
	Dispatcher *tools.Dispatcher
	Profile    *profile.Context
	Listener   voice.Listener
	Speaker    voice.Speaker
	// Journal and Bus are optional.
	Journal Journal
	Bus     *bus.MessageBus
}

type Options struct {
	Model              string
	MaxTokens          int
	Temperature        float64
	RateInPerMillion   float64
	RateOutPerMillion  float64
	StartingBalance    float64
	Continuous         bool
	ReengagePause      time.Duration
	TerminationPhrases []string
}

// Reply is the outcome of one turn. An empty Text means nothing is said.
type Reply struct {
	Text            string
	Terminate       bool
	PersonaSwitched string
	Usage           UsageSnapshot
}

// Orchestrator runs turns. At most one turn owns the memory store and the
// input device at a time; ownership is the busy flag.
type Orchestrator struct {
	provider   providers.LLMProvider
	memory     *memory.Store
	dispatcher *tools.Dispatcher
	profile    *profile.Context
	listener   voice.Listener
	speaker    voice.Speaker
	journal    Journal
	bus        *bus.MessageBus

	opts       Options
	accountant *Accountant

	busy       atomic.Bool
	state      atomic.Int32
	continuous atomic.Bool
	stopped    atomic.Bool

	life   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.Model == "" && deps.Provider != nil {
		opts.Model = deps.Provider.GetDefaultModel()
	}
	if opts.ReengagePause <= 0 {
		opts.ReengagePause = 500 * time.Millisecond
	}
	if len(opts.TerminationPhrases) == 0 {
		opts.TerminationPhrases = DefaultTerminationPhrases()
	}
	if deps.Profile == nil {
		deps.Profile = profile.NewContext(profile.Default(), nil)
	}
	if deps.Memory == nil {
		deps.Memory = memory.NewStore("", memory.DefaultPolicy())
	}

	o := &Orchestrator{
		provider:   deps.Provider,
		memory:     deps.Memory,
		dispatcher: deps.Dispatcher,
		profile:    deps.Profile,
		listener:   deps.Listener,
		speaker:    deps.Speaker,
		journal:    deps.Journal,
		bus:        deps.Bus,
		opts:       opts,
		accountant: NewAccountant(opts.RateInPerMillion, opts.RateOutPerMillion, opts.StartingBalance),
	}
	o.life, o.cancel = context.WithCancel(context.Background())

	if o.speaker != nil {
		o.speaker.SetVoice(o.profile.Snapshot().Voice)
		o.profile.Subscribe(func(p profile.Profile) { o.speaker.SetVoice(p.Voice) })
	}
	return o
}

func (o *Orchestrator) State() TurnState {
	return TurnState(o.state.Load())
}

func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) Usage() UsageSnapshot {
	return o.accountant.Snapshot()
}

func (o *Orchestrator) setState(s TurnState) {
	if prev := TurnState(o.state.Swap(int32(s))); prev != s {
		logger.DebugCF("agent", "Turn state changed", map[string]interface{}{
			"from": prev.String(),
			"to":   s.String(),
		})
	}
}

// Greet speaks the boot greeting. It holds the turn slot while speaking so
// the orchestrator is back in standby once it returns.
func (o *Orchestrator) Greet(ctx context.Context) {
	if err := o.acquire(ctx); err != nil {
		return
	}
	defer func() {
		o.setState(StateStandby)
		o.busy.Store(false)
	}()
	o.speak(ctx, fmt.Sprintf("Welcome back, %s.", o.profile.UserName()))
}

// Engage starts a voice turn unless one is already active. woken marks a
// turn triggered by the wake listener, which is acknowledged aloud first.
func (o *Orchestrator) Engage(ctx context.Context, woken bool) bool {
	if o.stopped.Load() || o.listener == nil {
		return false
	}
	if !o.busy.CompareAndSwap(false, true) {
		logger.DebugC("agent", "Engage ignored; a turn is already active")
		return false
	}
	o.continuous.Store(o.opts.Continuous)

	o.wg.Add(1)
	go o.voiceLoop(ctx, woken)
	return true
}

// Wait blocks until every voice turn goroutine has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop ends continuous mode, cancels in-flight turns and waits for them.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	o.continuous.Store(false)
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) voiceLoop(parent context.Context, woken bool) {
	defer o.wg.Done()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	detach := context.AfterFunc(o.life, cancel)
	defer detach()

	for {
		if woken {
			o.speak(ctx, fmt.Sprintf("Yes, %s?", o.profile.UserName()))
			woken = false
		}
		terminate := o.voiceTurn(ctx)

		o.setState(StateStandby)
		o.busy.Store(false)

		if terminate || !o.continuous.Load() || ctx.Err() != nil {
			logger.InfoC("agent", "Returning to standby")
			return
		}
		if !pause(ctx, o.opts.ReengagePause) {
			return
		}
		if !o.busy.CompareAndSwap(false, true) {
			return
		}
		logger.DebugC("agent", "Continuous mode: re-engaging listener")
	}
}

// voiceTurn listens, runs one turn and speaks the reply. It reports whether
// the voice loop must end.
func (o *Orchestrator) voiceTurn(ctx context.Context) bool {
	o.setState(StateListening)
	text, err := o.listener.Listen(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, voice.ErrDeviceUnavailable) {
			logger.WarnCF("agent", "Input unavailable; leaving continuous mode", map[string]interface{}{
				"error": err.Error(),
			})
			return true
		}
		logger.DebugCF("agent", "Listen returned no usable input", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	if voice.IsNoInput(text) {
		logger.DebugC("agent", "No input detected")
		return false
	}

	o.recordHistory(ctx, text, journal.SourceVoice)
	reply := o.RunTurn(ctx, text)
	o.speak(ctx, reply.Text)
	return reply.Terminate
}

// HandleText runs a turn for literal text, waiting for any active turn to
// finish first.
func (o *Orchestrator) HandleText(ctx context.Context, text string) (Reply, error) {
	return o.handleText(ctx, text, journal.SourceText)
}

func (o *Orchestrator) handleText(ctx context.Context, text, source string) (Reply, error) {
	if err := o.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer func() {
		o.setState(StateStandby)
		o.busy.Store(false)
	}()

	if !voice.IsNoInput(text) {
		o.recordHistory(ctx, text, source)
	}
	return o.RunTurn(ctx, text), nil
}

func (o *Orchestrator) acquire(ctx context.Context) error {
	for !o.busy.CompareAndSwap(false, true) {
		if !pause(ctx, textTurnPoll) {
			return ctx.Err()
		}
	}
	return nil
}

// Run answers inbound channel messages until ctx is done or the bus closes.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.bus == nil {
		return errors.New("orchestrator has no message bus")
	}
	for {
		msg, ok := o.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}
		reply, err := o.handleText(ctx, msg.Content, journal.SourceChannel)
		if err != nil {
			return nil
		}
		if reply.Text == "" {
			continue
		}
		o.bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: reply.Text,
			Kind:    bus.KindReply,
		})
	}
}

// RunTurn executes steps 2 to 7 of a turn for input. The caller must own
// the busy flag.
func (o *Orchestrator) RunTurn(ctx context.Context, input string) Reply {
	input = strings.TrimSpace(input)
	if voice.IsNoInput(input) {
		return Reply{Usage: o.Usage()}
	}

	if o.isTermination(input) {
		o.setState(StateTerminating)
		o.continuous.Store(false)
		logger.InfoCF("agent", "Termination phrase detected", map[string]interface{}{
			"input": input,
		})
		o.sessionLog(ctx, "system", "Session returned to standby")
		return Reply{Text: terminationReply, Terminate: true, Usage: o.Usage()}
	}

	user := o.profile.UserName()
	if o.accountant.Depleted() {
		return Reply{
			Text:  fmt.Sprintf("I apologize, %s, but your OpenAI balance has reached zero. Please top up your account to continue our interaction.", user),
			Usage: o.Usage(),
		}
	}

	o.setState(StateThinking)
	o.sessionLog(ctx, "user", input)
	o.memory.AppendUser(input)

	text, sentinel, err := o.think(ctx)
	if err != nil {
		if providers.IsContextOverflow(err) {
			o.memory.Reset()
			logger.WarnCF("agent", "Context overflow; transcript reset to system prompt", map[string]interface{}{
				"error": err.Error(),
			})
			o.sessionLog(ctx, "system", contextResetText)
			return Reply{Text: contextResetText, Usage: o.Usage()}
		}
		logger.ErrorCF("agent", "Turn failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Reply{Text: fmt.Sprintf("I apologize, %s, but I encountered an error: %v", user, err), Usage: o.Usage()}
	}

	reply := Reply{Text: text}
	if name, ok := profile.ParseSentinel(text); ok {
		sentinel = name
	}
	if sentinel != "" {
		p := o.profile.SwitchPersona(sentinel)
		reply.PersonaSwitched = p.Persona
		reply.Text = fmt.Sprintf("Personality matrix successfully shifted to %s.", strings.ToUpper(p.Persona))
		logger.InfoCF("agent", "Persona switched", map[string]interface{}{
			"persona": p.Persona,
			"voice":   p.Voice,
		})
	}

	if o.memory.Compact() {
		logger.DebugCF("agent", "Transcript compacted", map[string]interface{}{
			"entries": o.memory.Len(),
		})
	}
	if summary := o.memory.Summary(); summary != "" {
		o.profile.SetSummary(summary)
	}
	o.sessionLog(ctx, "assistant", reply.Text)

	reply.Usage = o.Usage()
	return reply
}

// think runs the two-pass model exchange. It returns the final assistant
// text and any persona named by a tool result.
func (o *Orchestrator) think(ctx context.Context) (string, string, error) {
	if o.provider == nil {
		return "", "", errors.New("no model provider configured")
	}
	var defs []providers.ToolDefinition
	if o.dispatcher != nil {
		defs = o.dispatcher.Definitions()
	}

	first, err := o.chat(ctx, defs)
	if err != nil {
		return "", "", err
	}
	if len(first.ToolCalls) == 0 {
		o.memory.AppendAssistant(first.Content)
		return first.Content, "", nil
	}

	calls := uniqueCalls(first.ToolCalls)
	o.memory.AppendToolCalls(first.Content, calls)
	o.setState(StateDispatching)

	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, tools.CallName(call))
	}
	logger.InfoCF("agent", "Model requested tool calls", map[string]interface{}{
		"tools": names,
		"count": len(calls),
	})

	var sentinel string
	for i, call := range calls {
		result := o.dispatch(ctx, call)
		o.memory.AppendToolResult(call.ID, names[i], result)
		if name, ok := profile.ParseSentinel(result); ok {
			sentinel = name
		}
	}

	o.setState(StateThinking)
	second, err := o.chat(ctx, nil)
	if err != nil {
		return "", "", err
	}
	o.memory.AppendAssistant(second.Content)
	return second.Content, sentinel, nil
}

// uniqueCalls drops repeated call ids, keeping the first occurrence.
func uniqueCalls(calls []providers.ToolCall) []providers.ToolCall {
	seen := make(map[string]struct{}, len(calls))
	out := make([]providers.ToolCall, 0, len(calls))
	for _, call := range calls {
		if call.ID != "" {
			if _, dup := seen[call.ID]; dup {
				logger.WarnCF("agent", "Skipping repeated tool call id", map[string]interface{}{
					"id":   call.ID,
					"tool": tools.CallName(call),
				})
				continue
			}
			seen[call.ID] = struct{}{}
		}
		out = append(out, call)
	}
	return out
}

func (o *Orchestrator) dispatch(ctx context.Context, call providers.ToolCall) string {
	if o.dispatcher == nil {
		return fmt.Sprintf("Error: tool %q not found.", tools.CallName(call))
	}
	return o.dispatcher.Dispatch(ctx, call)
}

func (o *Orchestrator) chat(ctx context.Context, defs []providers.ToolDefinition) (*providers.LLMResponse, error) {
	callOpts := map[string]interface{}{}
	if o.opts.MaxTokens > 0 {
		callOpts["max_tokens"] = o.opts.MaxTokens
	}
	if o.opts.Temperature > 0 {
		callOpts["temperature"] = o.opts.Temperature
	}

	messages := o.memory.Messages()
	logger.DebugCF("agent", "Model request", map[string]interface{}{
		"model":          o.opts.Model,
		"messages_count": len(messages),
		"tools_count":    len(defs),
	})

	resp, err := o.provider.Chat(ctx, messages, defs, o.opts.Model, callOpts)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("model returned an empty response")
	}
	o.charge(ctx, resp.Usage)
	return resp, nil
}

func (o *Orchestrator) charge(ctx context.Context, usage *providers.UsageInfo) {
	if usage == nil {
		return
	}
	cost := o.accountant.Charge(usage)
	if o.journal == nil {
		return
	}
	err := o.journal.RecordUsage(ctx, journal.UsageRecord{
		Model:            o.opts.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Cost:             cost,
	})
	if err != nil {
		logger.WarnCF("agent", "Failed to record usage", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) isTermination(input string) bool {
	lower := strings.ToLower(input)
	for _, phrase := range o.opts.TerminationPhrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if text == "" || o.speaker == nil {
		return
	}
	o.setState(StateSpeaking)
	if err := o.speaker.Speak(ctx, text); err != nil {
		logger.WarnCF("agent", "Speech output failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, text, source string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.AppendHistory(ctx, text, source); err != nil {
		logger.WarnCF("agent", "Failed to record command history", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) sessionLog(ctx context.Context, kind, message string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.AppendSessionLog(ctx, kind, message); err != nil {
		logger.WarnCF("agent", "Failed to append session log", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
