package guard

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"
)

//go:embed rulepack.yml
var rulepackFS embed.FS

type rawRulepack struct {
	Version   int       `yaml:"version"`
	Threshold float64   `yaml:"threshold"`
	Rules     []rawRule `yaml:"rules"`
}

type rawRule struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Pattern string   `yaml:"pattern"`
	Phrases []string `yaml:"phrases"`
	Weight  float64  `yaml:"weight"`
}

type regexRule struct {
	ID      string
	Pattern *regexp.Regexp
	Weight  float64
}

type compiledPack struct {
	Threshold     float64
	RegexRules    []regexRule
	PhraseMatcher *ahocorasick.Matcher
	Phrases       []string
	PhraseWeights map[string]float64
}

func loadEmbeddedRulepack() (compiledPack, error) {
	data, err := rulepackFS.ReadFile("rulepack.yml")
	if err != nil {
		return compiledPack{}, fmt.Errorf("read rulepack: %w", err)
	}

	var raw rawRulepack
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return compiledPack{}, fmt.Errorf("parse rulepack: %w", err)
	}
	return compileRulepack(raw)
}

func compileRulepack(raw rawRulepack) (compiledPack, error) {
	if raw.Threshold == 0 {
		raw.Threshold = 0.85
	}

	var regexes []regexRule
	phrases := make([]string, 0)
	phraseWeights := make(map[string]float64)

	for _, rule := range raw.Rules {
		switch strings.ToLower(strings.TrimSpace(rule.Type)) {
		case "regex":
			if rule.ID == "" || rule.Pattern == "" {
				return compiledPack{}, fmt.Errorf("regex rule missing id or pattern")
			}
			pattern, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				return compiledPack{}, fmt.Errorf("compile rule %s: %w", rule.ID, err)
			}
			regexes = append(regexes, regexRule{ID: rule.ID, Pattern: pattern, Weight: rule.Weight})
		case "phrase":
			for _, phrase := range rule.Phrases {
				normalized := strings.ToLower(strings.TrimSpace(phrase))
				if normalized == "" {
					continue
				}
				phrases = append(phrases, normalized)
				phraseWeights[normalized] = rule.Weight
			}
		default:
			return compiledPack{}, fmt.Errorf("unknown rule type %q", rule.Type)
		}
	}

	pack := compiledPack{
		Threshold:     raw.Threshold,
		RegexRules:    regexes,
		Phrases:       phrases,
		PhraseWeights: phraseWeights,
	}
	if len(phrases) > 0 {
		pack.PhraseMatcher = ahocorasick.NewStringMatcher(phrases)
	}
	return pack, nil
}

// base64Run matches long unbroken base64-looking sequences. Smuggled payloads
// hide instructions the phrase rules cannot see.
var base64Run = regexp.MustCompile(`[A-Za-z0-9+/]{48,}={0,2}`)

func containsSuspiciousBase64(input string) bool {
	candidate := base64Run.FindString(input)
	if candidate == "" {
		return false
	}
	letters := 0
	digits := 0
	for _, r := range candidate {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	// Long hex dumps and URLs are mostly one class; real base64 mixes both.
	return letters > 0 && digits > 0
}
