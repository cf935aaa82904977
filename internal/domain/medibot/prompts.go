package medibot

import (
	"embed"
	"fmt"

	"github.com/medibot/medibot-backend/internal/prompt"
)

//go:embed prompts/*.yml
var promptsFS embed.FS

// Prompts is the MediBot prompt bundle.
type Prompts struct {
	prompts map[string]map[string]string
}

// NewPrompts loads the embedded MediBot prompts.
func NewPrompts() (*Prompts, error) {
	loaded, err := prompt.LoadYAMLDir(promptsFS, "prompts")
	if err != nil {
		return nil, fmt.Errorf("load medibot prompts: %w", err)
	}
	return &Prompts{prompts: loaded}, nil
}

// ChatSystem returns the conversational system instruction.
func (p *Prompts) ChatSystem() (string, error) {
	data, err := p.getPrompt("chat")
	if err != nil {
		return "", err
	}
	return promptField(data, "system", "chat.system")
}

// ChatUser builds the conversational prompt: the rendered history transcript
// followed by the new query.
func (p *Prompts) ChatUser(history string, query string) (string, error) {
	data, err := p.getPrompt("chat")
	if err != nil {
		return "", err
	}
	template, err := promptField(data, "user", "chat.user")
	if err != nil {
		return "", err
	}
	formatted, err := prompt.FormatTemplate(template, map[string]string{
		"history": history,
		"query":   query,
	})
	if err != nil {
		return "", fmt.Errorf("format chat.user: %w", err)
	}
	return formatted, nil
}

// SummarizeSystem returns the summarization system instruction.
func (p *Prompts) SummarizeSystem() (string, error) {
	data, err := p.getPrompt("summarize")
	if err != nil {
		return "", err
	}
	return promptField(data, "system", "summarize.system")
}

// AnalyzeSystem returns the triage system instruction.
func (p *Prompts) AnalyzeSystem() (string, error) {
	data, err := p.getPrompt("analyze")
	if err != nil {
		return "", err
	}
	return promptField(data, "system", "analyze.system")
}

func (p *Prompts) getPrompt(name string) (map[string]string, error) {
	if p == nil {
		return nil, fmt.Errorf("medibot prompts not initialized")
	}
	return prompt.Get(p.prompts, name, "medibot")
}

func promptField(data map[string]string, key string, label string) (string, error) {
	return prompt.Field(data, key, label)
}
