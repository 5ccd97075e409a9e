package skills

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dotsetgreg/dotvoice/pkg/tools"
)

const maxSkillOutput = 16000

// Skill is a loaded skill directory. It runs its entrypoint with the call
// arguments as a JSON object on stdin and returns stdout.
type Skill struct {
	manifest Manifest
	dir      string
	root     string
	schema   *jsonschema.Schema
}

var _ tools.Tool = (*Skill)(nil)

func newSkill(dir, root string, m Manifest) (*Skill, error) {
	raw, err := json.Marshal(m.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("parameters.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("parameters schema: %w", err)
	}
	schema, err := compiler.Compile("parameters.json")
	if err != nil {
		return nil, fmt.Errorf("parameters schema: %w", err)
	}
	return &Skill{manifest: m, dir: dir, root: root, schema: schema}, nil
}

func (s *Skill) Name() string                       { return s.manifest.Name }
func (s *Skill) Description() string                { return s.manifest.Description }
func (s *Skill) Parameters() map[string]interface{} { return s.manifest.Parameters }

// Dir is the directory the skill was loaded from.
func (s *Skill) Dir() string { return s.dir }

// Root is the skills root the skill was discovered under.
func (s *Skill) Root() string { return s.root }

func (s *Skill) Validate(args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	// Round-trip so numbers and nested values have the decoded JSON shapes
	// the validator expects.
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.schema.Validate(doc)
}

func (s *Skill) Execute(ctx context.Context, args map[string]interface{}) *tools.ToolResult {
	name := s.manifest.Name
	if err := s.Validate(args); err != nil {
		return tools.ErrorResult(fmt.Sprintf("Skill '%s' rejected its arguments: %v", name, err)).WithError(err)
	}
	input, err := json.Marshal(args)
	if err != nil {
		return tools.ErrorResult(fmt.Sprintf("Skill '%s' failed: %v", name, err)).WithError(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(s.manifest.TimeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, filepath.Join(s.dir, s.manifest.Entrypoint))
	cmd.Dir = s.dir
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %ds", s.manifest.TimeoutSeconds)
		} else if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, truncate(msg, 500))
		}
		return tools.ErrorResult(fmt.Sprintf("Skill '%s' failed: %v", name, err)).WithError(err)
	}
	return tools.NewToolResult(truncate(strings.TrimSpace(stdout.String()), maxSkillOutput))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
