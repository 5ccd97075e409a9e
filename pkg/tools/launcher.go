package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

// Launcher performs host side effects: opening URLs or applications and
// running shell commands that outlive the turn that started them.
type Launcher interface {
	Open(ctx context.Context, target string) error
	Run(ctx context.Context, command string) error
}

type launchedProcess struct {
	id        string
	command   string
	startedAt time.Time
	cancel    context.CancelFunc
}

// ExecLauncher starts commands through the platform shell and reaps them in
// the background. In dry-run mode it only logs.
type ExecLauncher struct {
	dryRun bool

	mu        sync.Mutex
	processes map[string]*launchedProcess
	wg        sync.WaitGroup
}

func NewExecLauncher(dryRun bool) *ExecLauncher {
	return &ExecLauncher{
		dryRun:    dryRun,
		processes: map[string]*launchedProcess{},
	}
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

func openerCommand(ctx context.Context, target string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.CommandContext(ctx, "cmd", "/c", "start", "", target)
	case "darwin":
		return exec.CommandContext(ctx, "open", target)
	default:
		return exec.CommandContext(ctx, "xdg-open", target)
	}
}

func (l *ExecLauncher) Open(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.New("open target is empty")
	}
	return l.start(ctx, "open "+target, func(procCtx context.Context) *exec.Cmd {
		return openerCommand(procCtx, target)
	})
}

func (l *ExecLauncher) Run(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return errors.New("command is empty")
	}
	return l.start(ctx, command, func(procCtx context.Context) *exec.Cmd {
		return shellCommand(procCtx, command)
	})
}

func (l *ExecLauncher) start(ctx context.Context, label string, build func(context.Context) *exec.Cmd) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.dryRun {
		logger.InfoCF("launcher", "Dry run: command not started", map[string]interface{}{
			"command": label,
		})
		return nil
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := build(procCtx)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %q: %w", label, err)
	}

	mp := &launchedProcess{
		id:        "proc-" + uuid.NewString()[:8],
		command:   label,
		startedAt: time.Now(),
		cancel:    cancel,
	}
	l.mu.Lock()
	l.processes[mp.id] = mp
	l.mu.Unlock()

	l.wg.Add(1)
	go l.wait(mp, cmd)
	return nil
}

func (l *ExecLauncher) wait(mp *launchedProcess, cmd *exec.Cmd) {
	defer l.wg.Done()
	err := cmd.Wait()
	mp.cancel()

	l.mu.Lock()
	delete(l.processes, mp.id)
	l.mu.Unlock()

	fields := map[string]interface{}{
		"id":          mp.id,
		"command":     mp.command,
		"duration_ms": time.Since(mp.startedAt).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fields["exit_code"] = exitErr.ExitCode()
		}
		logger.WarnCF("launcher", "Launched command exited with error", fields)
		return
	}
	logger.DebugCF("launcher", "Launched command exited", fields)
}

// Running returns the commands that have not exited yet.
func (l *ExecLauncher) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.processes))
	for _, mp := range l.processes {
		out = append(out, mp.command)
	}
	return out
}

// Close kills every command still running and waits for them to be reaped.
func (l *ExecLauncher) Close() error {
	l.mu.Lock()
	for _, mp := range l.processes {
		mp.cancel()
	}
	l.mu.Unlock()
	l.wg.Wait()
	return nil
}
