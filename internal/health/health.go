package health

import (
	"context"
	"time"

	"github.com/medibot/medibot-backend/internal/config"
	"github.com/medibot/medibot-backend/internal/usage"
)

var startTime = time.Now()

// Component is one health status entry.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response is the health response body.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Collect gathers health status. With deepChecks the usage database is pinged;
// the shallow form never touches external dependencies so liveness probes stay
// cheap.
func Collect(ctx context.Context, cfg *config.Config, usageRepo *usage.Repository, deepChecks bool) Response {
	components := make(map[string]Component)

	components["app"] = buildAppStatus()
	components["gemini"] = buildGeminiStatus(cfg)
	components["database"] = buildDatabaseStatus(ctx, cfg, usageRepo, deepChecks)

	overall := "ok"
	for _, component := range components {
		if component.Status != "ok" {
			overall = "degraded"
			break
		}
	}

	return Response{
		Status:     overall,
		Components: components,
	}
}

func buildAppStatus() Component {
	return Component{
		Status: "ok",
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		},
	}
}

func buildGeminiStatus(cfg *config.Config) Component {
	apiKeyPresent := false
	model := ""
	timeoutSeconds := 0
	maxAttempts := 0

	if cfg != nil {
		apiKeyPresent = cfg.Gemini.APIKey != ""
		model = cfg.Gemini.Model
		timeoutSeconds = cfg.Gemini.TimeoutSeconds
		maxAttempts = cfg.Gemini.MaxAttempts
	}
	status := "ok"
	if !apiKeyPresent {
		status = "degraded"
	}

	return Component{
		Status: status,
		Detail: map[string]any{
			"api_key_present": apiKeyPresent,
			"model":           model,
			"timeout_seconds": timeoutSeconds,
			"max_attempts":    maxAttempts,
		},
	}
}

func buildDatabaseStatus(ctx context.Context, cfg *config.Config, usageRepo *usage.Repository, deepChecks bool) Component {
	enabled := cfg != nil && cfg.Database.Enabled
	connected := false
	pingErr := ""

	if ctx == nil {
		ctx = context.Background()
	}
	if enabled && deepChecks && usageRepo != nil {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if err := usageRepo.Ping(checkCtx); err != nil {
			pingErr = err.Error()
		} else {
			connected = true
		}
	}

	status := "ok"
	if enabled && deepChecks && !connected {
		status = "degraded"
	}

	detail := map[string]any{
		"enabled":      enabled,
		"connected":    connected,
		"deep_checked": deepChecks,
	}
	if pingErr != "" {
		detail["ping_error"] = pingErr
	}

	return Component{
		Status: status,
		Detail: detail,
	}
}
