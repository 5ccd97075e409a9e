package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotsetgreg/dotvoice/pkg/agent"
	"github.com/dotsetgreg/dotvoice/pkg/channels"
	"github.com/dotsetgreg/dotvoice/pkg/config"
	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/profile"
	"github.com/dotsetgreg/dotvoice/pkg/reminders"
	"github.com/dotsetgreg/dotvoice/pkg/skills"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
	"github.com/dotsetgreg/dotvoice/pkg/voice"
)

var errInputClosed = errors.New("console input closed")

const timeLayout = "2006-01-02 15:04:05"

func onboard(out io.Writer, in io.Reader, force bool) error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "Config already exists at %s\n", configPath)
		fmt.Fprint(out, "Overwrite? (y/n): ")
		response, readErr := bufio.NewReader(in).ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read answer: %w", readErr)
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := config.SaveConfig(configPath, config.DefaultConfig()); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	// Paths below honour DOTVOICE_* overrides such as the data dir.
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.UserSkillsDir(), 0o755); err != nil {
		return fmt.Errorf("create skills dir: %w", err)
	}
	if _, err := os.Stat(cfg.ProtocolsPath()); os.IsNotExist(err) {
		if err := tools.NewCatalog(cfg.ProtocolsPath()).Save(); err != nil {
			return fmt.Errorf("write protocol book: %w", err)
		}
	}

	fmt.Fprintf(out, "%s is ready!\n", appName)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Add your model API key to", configPath)
	fmt.Fprintln(out, "  2. Talk on the console: dotvoice run")
	fmt.Fprintln(out, "  3. Or chat in text: dotvoice chat -m \"What's on my schedule?\"")
	fmt.Fprintln(out, "  4. (Gateway mode) Set channels.discord.token and run: dotvoice gateway")
	fmt.Fprintln(out, "  5. Check readiness: dotvoice status")
	return nil
}

// runCmd is the voice mode: greet, take a first turn, then leave the wake
// listener and scheduler running until interrupted or input closes.
func runCmd(ctx context.Context, debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configureLogging(cfg, debug)

	console, err := voice.NewConsole(voice.ConsoleConfig{
		Prompt:        "you> ",
		HistoryFile:   filepath.Join(cfg.DataPath(), "console_history"),
		ListenTimeout: time.Duration(cfg.Listener.ListenMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer console.Close()

	a, err := newApp(ctx, cfg, appOptions{Listener: console, Speaker: console, Prompter: console})
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := channels.NewManagerFromConfig(cfg, a.bus, console)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if err := manager.StartAll(gctx); err != nil {
		return err
	}
	a.watchSkills(gctx)
	a.scheduler.Start(gctx)

	if cfg.Listener.Enabled {
		awareness := voice.NewAwareness(voice.AwarenessConfig{
			Sampler:    console,
			Busy:       a.orch.Busy,
			OnWake:     func() { a.orch.Engage(gctx, true) },
			WakeWords:  a.profile.WakeWords,
			Idle:       config.Millis(cfg.Listener.IdleMS, voice.DefaultIdle),
			Cooldown:   config.Millis(cfg.Listener.CooldownMS, voice.DefaultCooldown),
			RetryDelay: config.Millis(cfg.Listener.RetryDelayMS, voice.DefaultRetryDelay),
			Window:     config.Millis(cfg.Listener.WindowMS, voice.DefaultWindow),
		})
		g.Go(func() error {
			awareness.Run(gctx)
			return nil
		})
	}
	if cfg.Channels.Discord.Enabled {
		g.Go(func() error { return a.orch.Run(gctx) })
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-console.Closed():
			return errInputClosed
		}
	})

	a.orch.Greet(gctx)
	a.orch.Engage(gctx, false)

	err = g.Wait()
	a.orch.Stop()
	if stopErr := manager.StopAll(context.Background()); stopErr != nil {
		logger.WarnCF("main", "Channel shutdown failed", map[string]interface{}{
			"error": stopErr.Error(),
		})
	}
	if errors.Is(err, errInputClosed) {
		return nil
	}
	return err
}

func chatCmd(ctx context.Context, out io.Writer, message string, debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configureLogging(cfg, debug)

	if strings.TrimSpace(message) != "" {
		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.orch.HandleText(ctx, message)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s %s\n", appName, reply.Text)
		return nil
	}

	console, err := voice.NewConsole(voice.ConsoleConfig{
		Prompt:      fmt.Sprintf("%s You: ", appName),
		HistoryFile: filepath.Join(cfg.DataPath(), "chat_history"),
	})
	if err != nil {
		return err
	}
	defer console.Close()

	a, err := newApp(ctx, cfg, appOptions{Speaker: console, Prompter: console})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := channels.NewManager(a.bus, channels.NewSpeechChannel(console))
	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer manager.StopAll(context.Background())
	a.scheduler.Start(ctx)

	fmt.Fprintf(out, "%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	a.orch.Greet(ctx)
	return chatLoop(ctx, out, console, a.orch)
}

// chatLoop feeds typed lines to the orchestrator until exit, EOF or a
// termination phrase.
func chatLoop(ctx context.Context, out io.Writer, console *voice.Console, orch *agent.Orchestrator) error {
	for {
		line, err := console.Listen(ctx)
		if err != nil {
			if errors.Is(err, voice.ErrDeviceUnavailable) || ctx.Err() != nil {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			fmt.Fprintf(out, "Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "exit" || input == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		reply, err := orch.HandleText(ctx, input)
		if err != nil {
			fmt.Fprintln(out, "\nGoodbye!")
			return nil
		}
		if reply.Text != "" {
			if err := console.Speak(ctx, reply.Text); err != nil {
				return err
			}
		}
		if reply.Terminate {
			return nil
		}
	}
}

func gatewayCmd(ctx context.Context, debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configureLogging(cfg, debug)

	if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required in %s or DOTVOICE_CHANNELS_DISCORD_TOKEN", getConfigPath())
	}
	cfg.Channels.Discord.Enabled = true

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := channels.NewManagerFromConfig(cfg, a.bus, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	if err := manager.StartAll(gctx); err != nil {
		return err
	}
	a.watchSkills(gctx)
	a.scheduler.Start(gctx)

	fmt.Printf("✓ Channels enabled: %s\n", strings.Join(manager.GetEnabledChannels(), ", "))
	fmt.Println("Press Ctrl+C to stop")

	g.Go(func() error { return a.orch.Run(gctx) })
	err = g.Wait()

	fmt.Println("\nShutting down...")
	a.orch.Stop()
	if stopErr := manager.StopAll(context.Background()); stopErr != nil {
		logger.WarnCF("main", "Channel shutdown failed", map[string]interface{}{
			"error": stopErr.Error(),
		})
	}
	fmt.Println("✓ Gateway stopped")
	return err
}

func statusCmd(ctx context.Context, out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	configPath := getConfigPath()

	fmt.Fprintf(out, "%s Status\n", appName)
	fmt.Fprintf(out, "Version: %s\n", formatVersion())
	if build, _ := formatBuildInfo(); build != "" {
		fmt.Fprintf(out, "Build: %s\n", build)
	}
	fmt.Fprintln(out)

	mark := func(path string) string {
		if _, err := os.Stat(path); err == nil {
			return "✓"
		}
		return "✗"
	}
	fmt.Fprintln(out, "Config:", configPath, mark(configPath))
	fmt.Fprintln(out, "Data dir:", cfg.DataPath(), mark(cfg.DataPath()))
	fmt.Fprintln(out, "Journal:", cfg.JournalPath(), mark(cfg.JournalPath()))
	fmt.Fprintln(out, "Protocols:", cfg.ProtocolsPath(), mark(cfg.ProtocolsPath()))

	pending := reminders.New(reminders.NewFileStore(cfg.ReminderStorePath()), reminders.Options{}).List()
	fmt.Fprintf(out, "Reminders: %d pending\n", len(pending))

	balance := cfg.Assistant.StartingBalance
	if _, err := os.Stat(cfg.JournalPath()); err == nil {
		store, err := journal.NewSQLiteStore(cfg.JournalPath())
		if err == nil {
			if totals, err := store.UsageTotals(ctx); err == nil {
				balance = agent.RemainingBalance(balance, totals)
				fmt.Fprintf(out, "Usage: %d calls, %d tokens, $%.4f\n", totals.Calls, totals.PromptTokens+totals.CompletionTokens, totals.Cost)
			}
			_ = store.Close()
		}
	}
	fmt.Fprintf(out, "Balance: $%.4f\n", balance)
	fmt.Fprintf(out, "Model: %s\n", cfg.Assistant.Model)

	status := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "not set"
	}
	apiReady := strings.TrimSpace(cfg.GetAPIKey()) != ""
	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Fprintln(out, "Model API key:", status(apiReady))
	fmt.Fprintln(out, "Discord token:", status(discordReady))
	fmt.Fprintln(out, "Voice ready:", status(apiReady && balance > 0))
	fmt.Fprintln(out, "Gateway ready:", status(apiReady && discordReady))
	return nil
}

func withReminders(fn func(*reminders.Scheduler) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return fn(reminders.New(reminders.NewFileStore(cfg.ReminderStorePath()), reminders.Options{}))
}

func withJournal(ctx context.Context, fn func(*journal.SQLiteStore) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := journal.NewSQLiteStore(cfg.JournalPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withCatalog refuses to edit a protocol book it cannot parse.
func withCatalog(fn func(*tools.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := tools.LoadCatalog(cfg.ProtocolsPath())
	if err != nil {
		return err
	}
	return fn(c)
}

func withProfile(fn func(*profile.Context) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return fn(profile.LoadContext(profile.NewStore(cfg.ProfilePath())))
}

func auditList(ctx context.Context, out io.Writer, j *journal.SQLiteStore, limit int) error {
	records, err := j.ListAudit(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "Action log is empty.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(out, rec.Line())
	}
	return nil
}

func historyList(ctx context.Context, out io.Writer, j *journal.SQLiteStore, limit int, source string) error {
	entries, err := j.ListHistory(ctx, limit, source)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No commands recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s [%s] %s\n", e.CreatedAt.Format(timeLayout), e.Source, e.Text)
	}
	return nil
}

func sessionLogList(ctx context.Context, out io.Writer, j *journal.SQLiteStore, limit int) error {
	entries, err := j.ListSessionLog(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "Session log is empty.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s: %s\n", e.CreatedAt.Format(timeLayout), e.Kind, e.Message)
	}
	return nil
}

func notesList(ctx context.Context, out io.Writer, j *journal.SQLiteStore) error {
	notes, err := j.ListNotes(ctx)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Fprintln(out, "No notes saved.")
		return nil
	}
	for _, n := range notes {
		fmt.Fprintf(out, "%s  %s  %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Text)
	}
	return nil
}

func protocolsList(out io.Writer, c *tools.Catalog) {
	names := c.ProtocolNames()
	if len(names) == 0 {
		fmt.Fprintln(out, "No protocols defined.")
	} else {
		fmt.Fprintln(out, "Protocols:")
		for _, name := range names {
			steps, _ := c.Protocol(name)
			fmt.Fprintf(out, "  %s: %s\n", name, strings.Join(steps, " -> "))
		}
	}

	apps := c.Apps()
	appNames := make([]string, 0, len(apps))
	for name := range apps {
		appNames = append(appNames, name)
	}
	sort.Strings(appNames)
	fmt.Fprintln(out, "Applications:")
	for _, name := range appNames {
		fmt.Fprintf(out, "  %s: %s\n", name, apps[name])
	}
}

func profileShow(out io.Writer, p profile.Profile) {
	fmt.Fprintf(out, "User: %s\n", p.UserName)
	fmt.Fprintf(out, "Persona: %s (voice %s)\n", p.Persona, p.Voice)
	fmt.Fprintf(out, "Wake words: %s\n", strings.Join(p.WakeWords, ", "))
	if p.Summary != "" {
		fmt.Fprintf(out, "Last session: %s\n", p.Summary)
	}
}

func skillsList(out io.Writer, cfg *config.Config) error {
	loaded, errs := skills.NewLoader(skillRoots(cfg)...).Load()
	if len(loaded) == 0 {
		fmt.Fprintln(out, "No skills installed.")
	} else {
		fmt.Fprintln(out, "Installed Skills:")
		for _, s := range loaded {
			fmt.Fprintf(out, "  ✓ %s - %s\n", s.Name(), s.Description())
			fmt.Fprintf(out, "    %s\n", s.Dir())
		}
	}
	for _, err := range errs {
		fmt.Fprintf(out, "  ✗ %v\n", err)
	}
	return nil
}

func skillsInstall(out io.Writer, cfg *config.Config, src string) error {
	name, err := skills.NewInstaller(cfg.UserSkillsDir()).Install(src)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Skill '%s' installed into %s\n", name, cfg.UserSkillsDir())
	return nil
}

func skillsRemove(out io.Writer, cfg *config.Config, name string) error {
	if err := skills.NewInstaller(cfg.UserSkillsDir()).Uninstall(name); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Skill '%s' removed\n", name)
	return nil
}
