package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	cobraDoc "github.com/spf13/cobra/doc"

	"github.com/dotsetgreg/dotvoice/pkg/config"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
)

const cliDocsDir = "reference/cli"

func newDocsCommand(rootFactory func() *cobra.Command) *cobra.Command {
	docsRoot := &cobra.Command{
		Use:    "docs",
		Short:  "Internal docs maintenance commands",
		Hidden: true,
	}

	var (
		outputDir string
		checkOnly bool
	)

	gen := &cobra.Command{
		Use:   "generate",
		Short: "Generate CLI, config and tool reference pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputDir) == "" {
				return fmt.Errorf("--output must not be empty")
			}
			if err := generateDocumentation(rootFactory, outputDir, checkOnly); err != nil {
				return err
			}
			if checkOnly {
				fmt.Fprintln(cmd.OutOrStdout(), "Docs are up to date.")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Docs written to %s\n", outputDir)
			}
			return nil
		},
	}
	gen.Flags().StringVar(&outputDir, "output", "docs", "Docs directory root")
	gen.Flags().BoolVar(&checkOnly, "check", false, "Fail if generated docs are out of date")

	docsRoot.AddCommand(gen)
	return docsRoot
}

// generateDocumentation writes every reference page under outputDir, or with
// checkOnly reports the pages that differ from what would be written.
func generateDocumentation(rootFactory func() *cobra.Command, outputDir string, checkOnly bool) error {
	pages, err := renderDocs(rootFactory)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)

	if checkOnly {
		var stale []string
		for _, name := range names {
			current, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(name)))
			if err != nil || string(current) != pages[name] {
				stale = append(stale, name)
			}
		}
		entries, _ := os.ReadDir(filepath.Join(outputDir, filepath.FromSlash(cliDocsDir)))
		for _, e := range entries {
			name := path.Join(cliDocsDir, e.Name())
			if _, ok := pages[name]; !ok {
				stale = append(stale, name)
			}
		}
		if len(stale) > 0 {
			return fmt.Errorf("docs out of date: %s; run `dotvoice docs generate`", strings.Join(stale, ", "))
		}
		return nil
	}

	// Removed commands must not leave pages behind.
	if err := os.RemoveAll(filepath.Join(outputDir, filepath.FromSlash(cliDocsDir))); err != nil {
		return fmt.Errorf("clear cli docs: %w", err)
	}
	for _, name := range names {
		if err := writeTextFile(filepath.Join(outputDir, filepath.FromSlash(name)), pages[name]); err != nil {
			return err
		}
	}
	return nil
}

// renderDocs returns every generated page keyed by its slash path under the
// docs root.
func renderDocs(rootFactory func() *cobra.Command) (map[string]string, error) {
	pages := map[string]string{}
	if err := renderCommandPages(rootFactory(), pages); err != nil {
		return nil, err
	}

	configRef, err := buildConfigReferenceMarkdown()
	if err != nil {
		return nil, err
	}
	pages["reference/config.md"] = configRef

	toolsRef, err := buildToolsReferenceMarkdown()
	if err != nil {
		return nil, err
	}
	pages["reference/tools.md"] = toolsRef
	return pages, nil
}

func renderCommandPages(cmd *cobra.Command, pages map[string]string) error {
	if cmd.HasParent() && !cmd.IsAvailableCommand() {
		return nil
	}
	cmd.DisableAutoGenTag = true

	var buf bytes.Buffer
	linkHandler := func(name string) string { return name }
	if err := cobraDoc.GenMarkdownCustom(cmd, &buf, linkHandler); err != nil {
		return fmt.Errorf("render %s: %w", cmd.CommandPath(), err)
	}
	name := strings.ReplaceAll(cmd.CommandPath(), " ", "_") + ".md"
	pages[path.Join(cliDocsDir, name)] = buf.String()

	for _, child := range cmd.Commands() {
		if err := renderCommandPages(child, pages); err != nil {
			return err
		}
	}
	return nil
}

func writeTextFile(path string, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

type configFieldRow struct {
	Path    string
	Type    string
	Env     string
	Default string
}

// buildConfigReferenceMarkdown renders one table per config section, with
// defaults read from DefaultConfig.
func buildConfigReferenceMarkdown() (string, error) {
	sections := map[string][]configFieldRow{}
	var order []string

	cfg := reflect.ValueOf(config.DefaultConfig()).Elem()
	t := cfg.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := jsonName(f)
		if key == "" {
			continue
		}
		section, prefix := "general", ""
		if f.Type.Kind() == reflect.Struct {
			section, prefix = key, key
		}
		if _, seen := sections[section]; !seen {
			order = append(order, section)
		}
		var rows []configFieldRow
		if prefix == "" {
			row, err := configRow(f, cfg.Field(i), key)
			if err != nil {
				return "", err
			}
			rows = append(rows, row)
		} else if err := collectConfigRows(cfg.Field(i), prefix, &rows); err != nil {
			return "", err
		}
		sections[section] = append(sections[section], rows...)
	}

	var b strings.Builder
	b.WriteString("# Config Reference\n\n")
	b.WriteString("Settings live in `~/.dotvoice/config.json` (override the path with `DOTVOICE_CONFIG`). ")
	b.WriteString("Environment variables win over the file.\n")
	for _, section := range order {
		b.WriteString("\n## " + section + "\n\n")
		b.WriteString("| Key | Type | Env Var | Default |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, row := range sections[section] {
			fmt.Fprintf(&b, "| `%s` | `%s` | `%s` | `%s` |\n",
				escapePipes(row.Path), row.Type, valueOr(row.Env, "-"), escapePipes(valueOr(row.Default, "-")))
		}
	}
	return b.String(), nil
}

func collectConfigRows(v reflect.Value, prefix string, rows *[]configFieldRow) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key := jsonName(f)
		if key == "" {
			continue
		}
		if f.Type.Kind() == reflect.Struct {
			if err := collectConfigRows(v.Field(i), prefix+"."+key, rows); err != nil {
				return err
			}
			continue
		}
		row, err := configRow(f, v.Field(i), prefix+"."+key)
		if err != nil {
			return err
		}
		*rows = append(*rows, row)
	}
	return nil
}

func configRow(f reflect.StructField, v reflect.Value, key string) (configFieldRow, error) {
	def, err := json.Marshal(v.Interface())
	if err != nil {
		return configFieldRow{}, fmt.Errorf("encode default for %s: %w", key, err)
	}
	return configFieldRow{
		Path:    key,
		Type:    friendlyType(f.Type),
		Env:     strings.TrimSpace(f.Tag.Get("env")),
		Default: string(def),
	}, nil
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name := strings.TrimSpace(strings.Split(f.Tag.Get("json"), ",")[0])
	if name == "-" {
		return ""
	}
	return name
}

func friendlyType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int64:
		return "int"
	case reflect.Float64:
		return "float"
	case reflect.Slice:
		return "array<" + friendlyType(t.Elem()) + ">"
	default:
		return t.String()
	}
}

// docsReminderBook stands in for the scheduler so reminder tools register.
type docsReminderBook struct{}

func (docsReminderBook) AddText(string, string) string { return "" }
func (docsReminderBook) ListText() string              { return "" }
func (docsReminderBook) CancelText(string) string      { return "" }
func (docsReminderBook) ClearText() string             { return "" }

// docsNoteStore stands in for the journal so note tools register.
type docsNoteStore struct{ tools.NoteStore }

func buildToolsReferenceMarkdown() (string, error) {
	registry := tools.NewToolRegistry()
	defer registry.Close()
	tools.RegisterBuiltins(registry, tools.Builtins{
		Launcher:  tools.NewExecLauncher(true),
		SearchURL: config.DefaultConfig().Tools.SearchURL,
		Reminders: docsReminderBook{},
		Notes:     docsNoteStore{},
	})

	var b strings.Builder
	b.WriteString("# Tool Reference\n\n")
	b.WriteString("Built-in tools offered to the model on every first pass.\n\n")
	b.WriteString("| Tool | Confirm | Description |\n")
	b.WriteString("| --- | --- | --- |\n")
	for _, name := range registry.List() {
		tool, ok := registry.Get(name)
		if !ok {
			continue
		}
		confirm := "no"
		if _, gated := tool.(tools.ConfirmableTool); gated {
			confirm = "yes"
		}
		b.WriteString("| `" + escapePipes(name) + "` | " + confirm + " | " + escapePipes(tool.Description()) + " |\n")
	}

	b.WriteString("\n## Confirm Policies\n\n")
	b.WriteString("| Policy | Behavior |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString("| `ask` | Gated actions are read back and run only after a spoken or typed yes. Without a console they are refused. |\n")
	b.WriteString("| `allow` | Gated actions run without asking. |\n")
	b.WriteString("| `deny` | Gated actions are always refused and logged as blocked. |\n")

	b.WriteString("\n## Notes\n\n")
	b.WriteString("- Every dispatched call is written to the action log (`dotvoice audit list`).\n")
	b.WriteString("- Skills found under `skills.user_dir` and `skills.bundled_dir` are added after the built-ins; a skill never replaces a built-in.\n")

	return b.String(), nil
}

func escapePipes(v string) string {
	return strings.ReplaceAll(v, "|", "\\|")
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
