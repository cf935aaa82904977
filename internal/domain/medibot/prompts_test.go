package medibot

import (
	"strings"
	"testing"
)

func TestNewPrompts(t *testing.T) {
	prompts, err := NewPrompts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	system, err := prompts.ChatSystem()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(system, "Disclaimer: I am an AI assistant and not a medical professional.") {
		t.Fatalf("chat system missing disclaimer contract: %q", system)
	}

	summarize, err := prompts.SummarizeSystem()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(summarize, "Conversation Summary:") {
		t.Fatalf("summarize system missing summary prefix: %q", summarize)
	}

	analyze, err := prompts.AnalyzeSystem()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(analyze, "medical triage AI") {
		t.Fatalf("unexpected analyze system: %q", analyze)
	}
}

func TestChatUser(t *testing.T) {
	prompts, err := NewPrompts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	built, err := prompts.ChatUser("User: a\nBot: b", "headache")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "Previous Conversation Context:\nUser: a\nBot: b\n\nNew User Query: headache"
	if built != expected {
		t.Fatalf("unexpected prompt:\n%q\nwant:\n%q", built, expected)
	}
}

func TestChatUserEmptyHistory(t *testing.T) {
	prompts, err := NewPrompts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	built, err := prompts.ChatUser("", "fever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if built != "Previous Conversation Context:\n\n\nNew User Query: fever" {
		t.Fatalf("unexpected prompt: %q", built)
	}
}

func TestNilPrompts(t *testing.T) {
	var prompts *Prompts
	if _, err := prompts.ChatSystem(); err == nil {
		t.Fatalf("expected error for nil prompts")
	}
}
