package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"google.golang.org/genai"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/llm"
	"github.com/medibot/medibot-backend/internal/metrics"
	"github.com/medibot/medibot-backend/internal/usage"
)

// fallbackText is returned verbatim when the upstream response carries no
// text part. For structured requests it fails JSON parsing and surfaces as a
// ParseError carrying this string.
const fallbackText = "AI response failed to generate text."

// Request is a single generation request.
type Request struct {
	Prompt       string
	SystemPrompt string
}

// Client calls the Gemini API with retry and records metrics and usage.
type Client struct {
	cfg           *config.Config
	metrics       *metrics.Store
	usageRecorder *usage.Recorder

	mu     sync.Mutex
	client *genai.Client

	// Test seams. When nil the real implementations are used.
	call  func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	sleep func(ctx context.Context, delay time.Duration) error
}

// NewClient builds a Gemini client. The usage recorder may be nil when usage
// accounting is disabled.
func NewClient(cfg *config.Config, metricsStore *metrics.Store, usageRecorder *usage.Recorder) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if metricsStore == nil {
		return nil, errors.New("metrics store is nil")
	}
	return &Client{
		cfg:           cfg,
		metrics:       metricsStore,
		usageRecorder: usageRecorder,
	}, nil
}

// Chat performs a plain-text generation request.
func (c *Client) Chat(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	response, err := c.generate(ctx, req, "", nil)
	if err != nil {
		c.metrics.RecordError(time.Since(start))
		return "", err
	}

	tokens := extractUsage(response)
	c.metrics.RecordSuccess(time.Since(start), tokens)
	c.recordUsage(ctx, tokens)
	return extractText(response), nil
}

// Structured performs a schema-constrained generation request and returns the
// decoded JSON object.
func (c *Client) Structured(ctx context.Context, req Request, schema map[string]any) (map[string]any, error) {
	start := time.Now()
	response, err := c.generate(ctx, req, "application/json", schema)
	if err != nil {
		c.metrics.RecordError(time.Since(start))
		return nil, err
	}

	tokens := extractUsage(response)
	c.metrics.RecordSuccess(time.Since(start), tokens)
	c.recordUsage(ctx, tokens)

	payload := extractText(response)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, &ParseError{Raw: payload, Err: err}
	}
	return parsed, nil
}

func (c *Client) recordUsage(ctx context.Context, tokens llm.Usage) {
	if c.usageRecorder == nil {
		return
	}
	c.usageRecorder.Record(ctx, int64(tokens.InputTokens), int64(tokens.OutputTokens))
}

func (c *Client) generate(
	ctx context.Context,
	req Request,
	responseMimeType string,
	responseSchema map[string]any,
) (*genai.GenerateContentResponse, error) {
	model := c.cfg.Gemini.Model
	genCfg := c.buildGenerateConfig(req.SystemPrompt, responseMimeType, responseSchema)
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	return c.generateWithRetry(ctx, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.doCall(ctx, model, contents, genCfg)
	})
}

func (c *Client) doCall(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	genCfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	if c.call != nil {
		return c.call(ctx, model, contents, genCfg)
	}
	client, err := c.selectClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.Models.GenerateContent(ctx, model, contents, genCfg)
}

func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	timeout := time.Duration(c.cfg.Gemini.TimeoutSeconds) * time.Second
	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:  c.cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			Timeout: genai.Ptr(timeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.client = client
	return client, nil
}

func (c *Client) buildGenerateConfig(
	systemPrompt string,
	responseMimeType string,
	responseSchema map[string]any,
) *genai.GenerateContentConfig {
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.cfg.Gemini.Temperature)),
		MaxOutputTokens: int32(c.cfg.Gemini.MaxOutputTokens),
		// Google Search grounding is always enabled so answers can cite
		// current medical guidance.
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if responseMimeType != "" {
		genCfg.ResponseMIMEType = responseMimeType
	}
	if responseSchema != nil {
		genCfg.ResponseJsonSchema = responseSchema
	}

	return genCfg
}

func extractText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 {
		return fallbackText
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return fallbackText
	}

	texts := make([]string, 0, len(content.Parts))
	for _, part := range content.Parts {
		if part == nil || part.Text == "" || part.Thought {
			continue
		}
		texts = append(texts, part.Text)
	}
	if len(texts) == 0 {
		return fallbackText
	}
	return strings.Join(texts, "")
}

func extractUsage(response *genai.GenerateContentResponse) llm.Usage {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}
	}
	meta := response.UsageMetadata
	return llm.Usage{
		InputTokens:  int(meta.PromptTokenCount),
		OutputTokens: int(meta.CandidatesTokenCount),
		TotalTokens:  int(meta.TotalTokenCount),
	}
}
