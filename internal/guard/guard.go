package guard

import (
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/medibot/medibot-backend/internal/cache"
	"github.com/medibot/medibot-backend/internal/config"
)

// InjectionGuard scores user inputs against the embedded rulepack before they
// reach the upstream model.
type InjectionGuard struct {
	cfg    *config.Config
	logger *slog.Logger
	pack   compiledPack
	loaded bool
	cache  *cache.TTLCache[string, Evaluation]
	group  singleflight.Group
}

// NewGuard creates the guard. When disabled by config every input passes.
func NewGuard(cfg *config.Config, logger *slog.Logger) (*InjectionGuard, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	cacheTTL := time.Duration(cfg.Guard.CacheTTLSeconds) * time.Second
	g := &InjectionGuard{
		cfg:    cfg,
		logger: logger,
		cache:  cache.NewTTLCache[string, Evaluation](cfg.Guard.CacheMaxSize, cacheTTL),
	}

	if cfg.Guard.Enabled {
		pack, err := loadEmbeddedRulepack()
		if err != nil {
			return nil, err
		}
		g.pack = pack
		g.loaded = true
		if logger != nil {
			logger.Info("guard_ready",
				"regex_rules", len(pack.RegexRules),
				"phrases", len(pack.Phrases),
				"threshold", g.threshold(),
			)
		}
	}

	return g, nil
}

// Evaluate scores one input. Results are cached by exact input text and
// deduplicated across concurrent identical requests.
func (g *InjectionGuard) Evaluate(input string) Evaluation {
	if g == nil || g.cfg == nil || !g.cfg.Guard.Enabled || !g.loaded {
		return Evaluation{Score: 0, Hits: nil, Threshold: math.Inf(1)}
	}

	if cached, ok := g.cache.Get(input); ok {
		return cached
	}

	value, _, _ := g.group.Do(input, func() (any, error) {
		result := g.evaluateInternal(input)
		g.cache.Set(input, result)
		return result, nil
	})

	if evaluation, ok := value.(Evaluation); ok {
		return evaluation
	}
	return Evaluation{Score: 0, Hits: nil, Threshold: g.threshold()}
}

// EnsureSafe returns a BlockedError for inputs that score over the threshold.
func (g *InjectionGuard) EnsureSafe(input string) error {
	evaluation := g.Evaluate(input)
	if evaluation.Malicious() {
		return &BlockedError{Score: evaluation.Score, Threshold: evaluation.Threshold}
	}
	return nil
}

// IsMalicious reports whether the input would be blocked.
func (g *InjectionGuard) IsMalicious(input string) bool {
	return g.Evaluate(input).Malicious()
}

func (g *InjectionGuard) threshold() float64 {
	if g.cfg != nil && g.cfg.Guard.Threshold > 0 {
		return g.cfg.Guard.Threshold
	}
	if g.loaded && g.pack.Threshold > 0 {
		return g.pack.Threshold
	}
	return 0.85
}

func (g *InjectionGuard) evaluateInternal(input string) Evaluation {
	threshold := g.threshold()

	if containsSuspiciousBase64(input) {
		if g.logger != nil {
			g.logger.Warn("guard_base64_payload_blocked", "input", trimForLog(input))
		}
		return Evaluation{
			Score:     threshold,
			Hits:      []Match{{ID: "base64_payload", Weight: threshold}},
			Threshold: threshold,
		}
	}

	score, hits := g.evaluatePack(input)
	return Evaluation{Score: score, Hits: hits, Threshold: threshold}
}

func (g *InjectionGuard) evaluatePack(text string) (float64, []Match) {
	total := 0.0
	hits := make([]Match, 0)
	textLower := strings.ToLower(text)

	for _, rule := range g.pack.RegexRules {
		if rule.Pattern.MatchString(text) {
			total += rule.Weight
			hits = append(hits, Match{ID: rule.ID, Weight: rule.Weight})
		}
	}

	if g.pack.PhraseMatcher != nil {
		matches := g.pack.PhraseMatcher.MatchThreadSafe([]byte(textLower))
		for _, index := range matches {
			if index < 0 || index >= len(g.pack.Phrases) {
				continue
			}
			phrase := g.pack.Phrases[index]
			weight := g.pack.PhraseWeights[phrase]
			if weight <= 0 {
				continue
			}
			total += weight
			hits = append(hits, Match{ID: "phrase:" + phrase, Weight: weight})
		}
	}

	return total, hits
}

func trimForLog(value string) string {
	value = strings.TrimSpace(value)
	if len(value) <= 50 {
		return value
	}
	return value[:50]
}
