package tools

import (
	"context"
	"testing"
)

func TestToolRegistry_BuiltinsWinOverSkills(t *testing.T) {
	registry := NewToolRegistry()
	builtin := &stubTool{name: "web_search"}
	registry.Register(builtin)

	shadowed := registry.MergeSkills([]Tool{
		&stubTool{name: "web_search"},
		&stubTool{name: "weather"},
	})
	if len(shadowed) != 1 || shadowed[0] != "web_search" {
		t.Fatalf("expected web_search to be shadowed, got %v", shadowed)
	}

	got, ok := registry.Get("web_search")
	if !ok || got != builtin {
		t.Fatalf("expected builtin web_search to resolve, got %#v", got)
	}
	if !registry.IsBuiltin("web_search") || registry.IsBuiltin("weather") {
		t.Fatalf("unexpected builtin classification")
	}
	if registry.Count() != 2 {
		t.Fatalf("expected 2 tools, got %d", registry.Count())
	}
}

func TestToolRegistry_MergeSkillsReplacesPreviousSet(t *testing.T) {
	registry := NewToolRegistry()
	registry.MergeSkills([]Tool{&stubTool{name: "weather"}})
	registry.MergeSkills([]Tool{&stubTool{name: "stocks"}})

	if _, ok := registry.Get("weather"); ok {
		t.Fatalf("expected weather to be dropped after reload")
	}
	if _, ok := registry.Get("stocks"); !ok {
		t.Fatalf("expected stocks to be registered")
	}
}

func TestToolRegistry_DefinitionsSorted(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&stubTool{name: "zeta"})
	registry.Register(&stubTool{name: "alpha"})
	registry.MergeSkills([]Tool{&stubTool{name: "mid"}})

	defs := registry.ToProviderDefs()
	if len(defs) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, def := range defs {
		if def.Function.Name != want[i] || def.Type != "function" {
			t.Fatalf("definition %d = %+v, want %s", i, def, want[i])
		}
	}
}

func TestToolRegistry_ExecuteNotFound(t *testing.T) {
	registry := NewToolRegistry()
	result := registry.Execute(context.Background(), "missing", nil)
	if !result.IsError || result.Err != ErrToolNotFound {
		t.Fatalf("expected not-found error result, got %+v", result)
	}
}

func TestSanitizeToolArgs_RedactsSecrets(t *testing.T) {
	got := sanitizeToolArgs(map[string]interface{}{
		"api_key": "sk-123",
		"nested":  map[string]interface{}{"password": "hunter2", "city": "Oslo"},
		"query":   "weather",
	})
	if got["api_key"] != "<redacted>" {
		t.Fatalf("expected api_key redacted, got %v", got["api_key"])
	}
	nested := got["nested"].(map[string]interface{})
	if nested["password"] != "<redacted>" || nested["city"] != "Oslo" {
		t.Fatalf("unexpected nested sanitization: %v", nested)
	}
	if got["query"] != "weather" {
		t.Fatalf("expected query untouched, got %v", got["query"])
	}
}
