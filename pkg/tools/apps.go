package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dotsetgreg/dotvoice/pkg/logger"
)

// OpenApplicationTool launches an application by catalog alias or, failing
// that, by running the name as a command.
type OpenApplicationTool struct {
	catalog  *Catalog
	launcher Launcher
}

func NewOpenApplicationTool(catalog *Catalog, launcher Launcher) *OpenApplicationTool {
	return &OpenApplicationTool{catalog: catalog, launcher: launcher}
}

func (t *OpenApplicationTool) Name() string { return "open_application" }

func (t *OpenApplicationTool) Description() string {
	return "Open an application on the computer (browser, notepad, calculator, code, or any installed app name)."
}

func (t *OpenApplicationTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"app_name": stringProperty("Name of the application to open."),
	}, "app_name")
}

func (t *OpenApplicationTool) ConfirmAction(args map[string]interface{}) (string, string, bool) {
	return "Open application", stringArg(args, "app_name"), true
}

func (t *OpenApplicationTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	app := stringArg(args, "app_name")
	if app == "" {
		return ErrorResult("app_name is required.")
	}
	cmd, ok := t.catalog.App(app)
	if !ok {
		cmd = app
	}
	if err := t.launcher.Run(ctx, cmd); err != nil {
		logger.WarnCF("tool", "Open application failed", map[string]interface{}{
			"app":   app,
			"error": err.Error(),
		})
		return ErrorResult(fmt.Sprintf("I could not find %s in my protocols.", app)).WithError(err)
	}
	return UserResult(fmt.Sprintf("Opening %s.", app))
}

type WebSearchTool struct {
	searchURL string
	launcher  Launcher
}

func NewWebSearchTool(searchURL string, launcher Launcher) *WebSearchTool {
	if strings.TrimSpace(searchURL) == "" {
		searchURL = "https://www.google.com/search?q="
	}
	return &WebSearchTool{searchURL: searchURL, launcher: launcher}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for a query in the default browser."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"query": stringProperty("The search query."),
	}, "query")
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	query := stringArg(args, "query")
	if query == "" {
		return ErrorResult("query is required.")
	}
	target := t.searchURL + url.QueryEscape(query)
	if err := t.launcher.Open(ctx, target); err != nil {
		return ErrorResult(fmt.Sprintf("I couldn't open the browser: %v", err)).WithError(err)
	}
	return UserResult(fmt.Sprintf("Searching the web for %s.", query))
}

// InitiateProtocolTool runs every step of a named protocol in order.
type InitiateProtocolTool struct {
	catalog  *Catalog
	launcher Launcher
}

func NewInitiateProtocolTool(catalog *Catalog, launcher Launcher) *InitiateProtocolTool {
	return &InitiateProtocolTool{catalog: catalog, launcher: launcher}
}

func (t *InitiateProtocolTool) Name() string { return "initiate_protocol" }

func (t *InitiateProtocolTool) Description() string {
	return "Run a predefined multi-step protocol such as 'work mode', 'entertainment', 'security' or 'focus'."
}

func (t *InitiateProtocolTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"protocol_name": stringProperty("Name of the protocol to run."),
	}, "protocol_name")
}

func (t *InitiateProtocolTool) ConfirmAction(args map[string]interface{}) (string, string, bool) {
	name := stringArg(args, "protocol_name")
	steps, ok := t.catalog.Protocol(name)
	if !ok {
		return "", "", false
	}
	return "Run protocol", fmt.Sprintf("%s: %s", name, strings.Join(steps, ", ")), true
}

func (t *InitiateProtocolTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	name := stringArg(args, "protocol_name")
	steps, ok := t.catalog.Protocol(name)
	if !ok {
		return UserResult(fmt.Sprintf("Protocol %s not found in my database.", name))
	}
	for _, step := range steps {
		if err := t.catalog.runStep(ctx, t.launcher, step); err != nil {
			logger.WarnCF("tool", "Protocol step failed", map[string]interface{}{
				"protocol": name,
				"step":     step,
				"error":    err.Error(),
			})
		}
	}
	return UserResult(fmt.Sprintf("Initiating %s protocol. All systems authorized.", name))
}
