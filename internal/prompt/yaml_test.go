package prompt

import (
	"testing"
	"testing/fstest"
)

func TestLoadYAMLMapping(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/chat.yml": &fstest.MapFile{Data: []byte("system: You are MediBot.\nuser: \"Query: {query}\"\n")},
	}

	mapping, err := LoadYAMLMapping(fsys, "prompts/chat.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mapping["system"] != "You are MediBot." {
		t.Fatalf("unexpected system: %q", mapping["system"])
	}
	if mapping["user"] != "Query: {query}" {
		t.Fatalf("unexpected user: %q", mapping["user"])
	}
}

func TestLoadYAMLMappingRejectsTemplatedSystem(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/bad.yml": &fstest.MapFile{Data: []byte("system: \"Hello {name}\"\n")},
	}
	if _, err := LoadYAMLMapping(fsys, "prompts/bad.yml"); err == nil {
		t.Fatalf("expected error for templated system prompt")
	}
}

func TestLoadYAMLDir(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/chat.yml":      &fstest.MapFile{Data: []byte("system: a\n")},
		"prompts/summarize.yml": &fstest.MapFile{Data: []byte("system: b\n")},
	}

	prompts, err := LoadYAMLDir(fsys, "prompts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	if prompts["summarize"]["system"] != "b" {
		t.Fatalf("unexpected mapping: %+v", prompts)
	}
}

func TestGetAndField(t *testing.T) {
	prompts := map[string]map[string]string{"chat": {"system": "x"}}

	data, err := Get(prompts, "chat", "medibot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := Field(data, "system", "chat.system")
	if err != nil || value != "x" {
		t.Fatalf("unexpected field: %q err=%v", value, err)
	}

	if _, err := Get(prompts, "missing", "medibot"); err == nil {
		t.Fatalf("expected error for missing prompt")
	}
	if _, err := Field(data, "user", "chat.user"); err == nil {
		t.Fatalf("expected error for missing field")
	}
	if _, err := Get(nil, "chat", "medibot"); err == nil {
		t.Fatalf("expected error for nil collection")
	}
}
