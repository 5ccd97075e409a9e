package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/dotsetgreg/dotvoice/pkg/agent"
	"github.com/dotsetgreg/dotvoice/pkg/bus"
	"github.com/dotsetgreg/dotvoice/pkg/config"
	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/memory"
	"github.com/dotsetgreg/dotvoice/pkg/profile"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
	"github.com/dotsetgreg/dotvoice/pkg/reminders"
	"github.com/dotsetgreg/dotvoice/pkg/skills"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

// Confirm policies for state-changing tool calls.
const (
	confirmAsk   = "ask"
	confirmAllow = "allow"
	confirmDeny  = "deny"
)

// app is the assembled assistant shared by the run, chat and gateway
// commands.
type app struct {
	cfg        *config.Config
	journal    *journal.SQLiteStore
	profile    *profile.Context
	catalog    *tools.Catalog
	launcher   *tools.ExecLauncher
	registry   *tools.ToolRegistry
	dispatcher *tools.Dispatcher
	loader     *skills.Loader
	watcher    *skills.Watcher
	scheduler  *reminders.Scheduler
	bus        *bus.MessageBus
	orch       *agent.Orchestrator
}

type appOptions struct {
	Listener voice.Listener
	Speaker  voice.Speaker
	// Prompter answers confirm requests under the "ask" policy. Without one
	// "ask" degrades to deny.
	Prompter prompter
}

type prompter interface {
	voice.Listener
	voice.Speaker
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, err
	}

	store, err := journal.NewSQLiteStore(cfg.JournalPath())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		journal:  store,
		profile:  profile.LoadContext(profile.NewStore(cfg.ProfilePath())),
		launcher: tools.NewExecLauncher(cfg.Tools.DryRun),
		registry: tools.NewToolRegistry(),
		bus:      bus.NewMessageBus(),
	}

	if a.catalog, err = tools.LoadCatalog(cfg.ProtocolsPath()); err != nil {
		logger.WarnCF("main", "Protocol book unreadable; using defaults", map[string]interface{}{
			"path":  cfg.ProtocolsPath(),
			"error": err.Error(),
		})
	}

	a.scheduler = reminders.New(reminders.NewFileStore(cfg.ReminderStorePath()), reminders.Options{
		Poll:      config.Millis(cfg.Reminders.PollMS, reminders.DefaultPollInterval),
		OnTrigger: a.announceReminder,
	})

	tools.RegisterBuiltins(a.registry, tools.Builtins{
		Catalog:   a.catalog,
		Launcher:  a.launcher,
		SearchURL: cfg.Tools.SearchURL,
		Reminders: a.scheduler,
		Notes:     store,
	})

	a.loader = skills.NewLoader(skillRoots(cfg)...)
	a.loader.Reload(a.registry)

	a.dispatcher = tools.NewDispatcher(a.registry, tools.DispatcherOptions{
		Confirm: confirmFunc(cfg.Tools.ConfirmPolicy, opts.Prompter),
		Audit:   store,
	})

	pol := memory.Policy{
		Threshold:         cfg.Memory.CompactThreshold,
		Window:            cfg.Memory.CompactWindow,
		SummaryUsers:      cfg.Memory.SummaryUsers,
		SummaryAssistants: cfg.Memory.SummaryAssistants,
		SummaryMaxChars:   cfg.Memory.SummaryMaxChars,
	}
	snapshot := a.profile.Snapshot()

	balance := cfg.Assistant.StartingBalance
	if totals, err := store.UsageTotals(ctx); err == nil {
		balance = agent.RemainingBalance(balance, totals)
	} else {
		logger.WarnCF("main", "Usage ledger unreadable; starting from the configured balance", map[string]interface{}{
			"error": err.Error(),
		})
	}

	a.orch = agent.New(agent.Deps{
		Provider:   provider,
		Memory:     agent.NewMemory(snapshot, a.registry.GetSummaries(), pol),
		Dispatcher: a.dispatcher,
		Profile:    a.profile,
		Listener:   opts.Listener,
		Speaker:    opts.Speaker,
		Journal:    store,
		Bus:        a.bus,
	}, agent.Options{
		Model:              cfg.Assistant.Model,
		MaxTokens:          cfg.Assistant.MaxTokens,
		Temperature:        cfg.Assistant.Temperature,
		RateInPerMillion:   cfg.Assistant.RateInPerMillion,
		RateOutPerMillion:  cfg.Assistant.RateOutPerMillion,
		StartingBalance:    balance,
		Continuous:         cfg.Assistant.ContinuousMode,
		ReengagePause:      config.Millis(cfg.Assistant.ReengagePauseMS, 500*time.Millisecond),
		TerminationPhrases: cfg.Assistant.TerminationPhrases,
	})

	logger.InfoCF("main", "Assistant initialized", map[string]interface{}{
		"tools":   a.registry.Count(),
		"persona": snapshot.Persona,
		"user":    snapshot.UserName,
		"balance": balance,
	})
	return a, nil
}

func skillRoots(cfg *config.Config) []string {
	roots := []string{cfg.UserSkillsDir()}
	if bundled := cfg.BundledSkillsDir(); bundled != "" {
		roots = append(roots, bundled)
	}
	return roots
}

// watchSkills hot-reloads skills when enabled in config.
func (a *app) watchSkills(ctx context.Context) {
	if !a.cfg.Skills.Watch {
		return
	}
	a.watcher = skills.NewWatcher(a.loader.Roots(), func() {
		a.loader.Reload(a.registry)
	})
	if err := a.watcher.Start(ctx); err != nil {
		logger.WarnCF("skills", "Skill watcher unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		a.watcher = nil
	}
}

// announceReminder speaks a due reminder and mirrors it to the Discord
// notify chat when one is configured.
func (a *app) announceReminder(r reminders.Reminder) {
	text := "Reminder: " + r.Message
	logger.InfoCF("reminders", "Reminder triggered", map[string]interface{}{
		"id":      r.ID,
		"message": r.Message,
	})
	a.bus.Say(bus.KindReminder, text)
	if a.cfg.Channels.Discord.Enabled && strings.TrimSpace(a.cfg.Reminders.NotifyTo) != "" {
		a.bus.PublishOutbound(bus.OutboundMessage{
			Channel: bus.ChannelDiscord,
			ChatID:  a.cfg.Reminders.NotifyTo,
			Content: text,
			Kind:    bus.KindReminder,
		})
	}
	if err := a.journal.AppendSessionLog(context.Background(), "reminder", text); err != nil {
		logger.WarnCF("reminders", "Failed to log reminder", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Close releases everything newApp and watchSkills acquired.
func (a *app) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.scheduler.Stop()
	a.bus.Close()
	return multierr.Combine(
		a.registry.Close(),
		a.launcher.Close(),
		a.journal.Close(),
	)
}

// confirmFunc maps the configured policy onto a dispatcher confirm hook.
func confirmFunc(policy string, p prompter) tools.ConfirmFunc {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case confirmAllow:
		return nil
	case confirmDeny:
		return func(context.Context, string, string) bool { return false }
	case confirmAsk, "":
	default:
		logger.WarnCF("main", "Unknown confirm policy; asking instead", map[string]interface{}{
			"policy": policy,
		})
	}
	if p == nil {
		logger.InfoC("main", "No interactive prompter; state-changing actions will be refused")
		return func(context.Context, string, string) bool { return false }
	}
	return askConfirm(p)
}

func askConfirm(p prompter) tools.ConfirmFunc {
	return func(ctx context.Context, kind, detail string) bool {
		question := fmt.Sprintf("Confirm %s: %s? Say yes or no.", kind, detail)
		if err := p.Speak(ctx, question); err != nil {
			logger.WarnCF("main", "Failed to ask for confirmation", map[string]interface{}{
				"error": err.Error(),
			})
			return false
		}
		answer, err := p.Listen(ctx)
		if err != nil {
			return false
		}
		return isAffirmative(answer)
	}
}

func isAffirmative(answer string) bool {
	switch strings.Trim(strings.ToLower(strings.TrimSpace(answer)), ".!") {
	case "y", "yes", "yeah", "yep", "sure", "ok", "okay", "confirm", "do it", "go ahead":
		return true
	}
	return false
}
