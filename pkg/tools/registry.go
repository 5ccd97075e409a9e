package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
	"github.com/dotsetgreg/dotvoice/pkg/providers"
)

// ToolRegistry holds built-in tools and skill-provided tools. Built-ins
// always win: a skill whose name collides with a built-in is ignored.
type ToolRegistry struct {
	builtins map[string]Tool
	skills   map[string]Tool
	mu       sync.RWMutex
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		builtins: make(map[string]Tool),
		skills:   make(map[string]Tool),
	}
}

// Register adds a built-in tool.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[tool.Name()] = tool
}

// MergeSkills replaces the skill-provided tool set and returns the names
// that were shadowed by built-ins.
func (r *ToolRegistry) MergeSkills(skillTools []Tool) []string {
	next := make(map[string]Tool, len(skillTools))
	var shadowed []string

	r.mu.Lock()
	for _, tool := range skillTools {
		name := tool.Name()
		if _, builtin := r.builtins[name]; builtin {
			shadowed = append(shadowed, name)
			continue
		}
		if _, dup := next[name]; dup {
			continue
		}
		next[name] = tool
	}
	previous := r.skills
	r.skills = next
	r.mu.Unlock()

	for name, tool := range previous {
		if replacement, ok := next[name]; ok && replacement == tool {
			continue
		}
		if closer, ok := tool.(ClosableTool); ok {
			if err := closer.Close(); err != nil {
				logger.WarnCF("tool", "Failed to close replaced skill", map[string]interface{}{
					"tool":  name,
					"error": err.Error(),
				})
			}
		}
	}
	for _, name := range shadowed {
		logger.WarnCF("tool", "Skill shadowed by built-in tool", map[string]interface{}{
			"tool": name,
		})
	}
	return shadowed
}

// Close closes all registered tools that implement ClosableTool.
// It attempts all closes and returns the combined error.
func (r *ToolRegistry) Close() error {
	r.mu.RLock()
	closers := make([]ClosableTool, 0)
	for _, set := range []map[string]Tool{r.builtins, r.skills} {
		for _, tool := range set {
			if closer, ok := tool.(ClosableTool); ok {
				closers = append(closers, closer)
			}
		}
	}
	r.mu.RUnlock()

	var errs error
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", closer.Name(), err))
		}
	}
	return errs
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.builtins[name]; ok {
		return tool, true
	}
	tool, ok := r.skills[name]
	return tool, ok
}

// IsBuiltin reports whether name resolves to a built-in tool.
func (r *ToolRegistry) IsBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtins[name]
	return ok
}

func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	logger.InfoCF("tool", "Tool execution started",
		map[string]interface{}{
			"tool": name,
			"args": sanitizeToolArgs(args),
		})

	tool, ok := r.Get(name)
	if !ok {
		logger.ErrorCF("tool", "Tool not found",
			map[string]interface{}{
				"tool": name,
			})
		return ErrorResult(fmt.Sprintf("tool %q not found", name)).WithError(ErrToolNotFound)
	}

	start := time.Now()
	result := tool.Execute(ctx, args)
	duration := time.Since(start)
	if result == nil {
		err := fmt.Errorf("tool %q returned nil result", name)
		logger.ErrorCF("tool", "Tool returned nil result",
			map[string]interface{}{
				"tool": name,
			})
		return ErrorResult(err.Error()).WithError(err)
	}

	if result.IsError {
		logger.ErrorCF("tool", "Tool execution failed",
			map[string]interface{}{
				"tool":     name,
				"duration": duration.Milliseconds(),
				"error":    result.ForLLM,
			})
	} else {
		logger.InfoCF("tool", "Tool execution completed",
			map[string]interface{}{
				"tool":          name,
				"duration_ms":   duration.Milliseconds(),
				"result_length": len(result.ForLLM),
			})
	}

	return result
}

func (r *ToolRegistry) tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.builtins)+len(r.skills))
	for _, tool := range r.builtins {
		out = append(out, tool)
	}
	for _, tool := range r.skills {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ToProviderDefs converts tool definitions to provider-compatible format,
// sorted by name so the request body is stable.
func (r *ToolRegistry) ToProviderDefs() []providers.ToolDefinition {
	all := r.tools()
	definitions := make([]providers.ToolDefinition, 0, len(all))
	for _, tool := range all {
		definitions = append(definitions, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return definitions
}

// List returns the sorted names of all registered tools.
func (r *ToolRegistry) List() []string {
	all := r.tools()
	names := make([]string, 0, len(all))
	for _, tool := range all {
		names = append(names, tool.Name())
	}
	return names
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.builtins) + len(r.skills)
}

// GetSummaries returns "name - description" lines for every tool.
func (r *ToolRegistry) GetSummaries() []string {
	all := r.tools()
	summaries := make([]string, 0, len(all))
	for _, tool := range all {
		summaries = append(summaries, fmt.Sprintf("- `%s` - %s", tool.Name(), tool.Description()))
	}
	return summaries
}

var sensitiveArgKeyFragments = []string{
	"api_key",
	"apikey",
	"authorization",
	"auth",
	"bearer",
	"client_secret",
	"cookie",
	"password",
	"private",
	"secret",
	"session",
	"token",
}

func sanitizeToolArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(args))
	for key, value := range args {
		sanitized[key] = sanitizeToolArgValue(key, value, 0)
	}
	return sanitized
}

func sanitizeToolArgValue(key string, value interface{}, depth int) interface{} {
	if depth > 6 {
		return "<omitted>"
	}
	if isSensitiveArgKey(key) {
		return "<redacted>"
	}

	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = sanitizeToolArgValue(k, v, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeToolArgValue(key, item, depth+1))
		}
		return out
	case string:
		return truncateLogString(typed)
	default:
		return value
	}
}

func isSensitiveArgKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
	for _, fragment := range sensitiveArgKeyFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

func truncateLogString(value string) string {
	const maxLen = 256
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen] + "...(truncated)"
}
