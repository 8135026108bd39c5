package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/water-ai/internal/models"
)

// RuleEngine appends operator advisories to optimization results.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single advisory rule.
type Rule struct {
	ID         string    `yaml:"id"`
	Match      RuleMatch `yaml:"match"`
	Advisories []string  `yaml:"advisories"`
}

// RuleMatch defines optional attributes for rule matching. Unset fields match anything.
type RuleMatch struct {
	ReuseType        string   `yaml:"reuse_type"`
	RORequired       *bool    `yaml:"ro_required"`
	NeedsTreatment   *bool    `yaml:"needs_treatment"`
	MinContamination *float64 `yaml:"min_contamination"`
	MaxQuality       *float64 `yaml:"max_quality"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or the
// file does not exist, returns a nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("loaded advisory rules", slog.String("path", path), slog.Int("rules", len(cfg.Rules)))
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Len returns the number of loaded rules.
func (e *RuleEngine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Advise returns the de-duplicated advisories of every rule matching result.
func (e *RuleEngine) Advise(result models.OptimizationResult) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		if !rule.Match.matches(result) {
			continue
		}
		e.logger.Debug("advisory rule matched", slog.String("rule", rule.ID))
		matched = appendUnique(matched, rule.Advisories...)
	}
	if len(matched) == 0 {
		return nil
	}
	return matched
}

func (m RuleMatch) matches(result models.OptimizationResult) bool {
	if m.ReuseType != "" && !strings.EqualFold(m.ReuseType, string(result.FinalReuse.ReuseType)) {
		return false
	}
	if m.RORequired != nil && *m.RORequired != result.Tertiary.ROTrigger {
		return false
	}
	if m.NeedsTreatment != nil && *m.NeedsTreatment != result.FinalReuse.NeedsTreatment {
		return false
	}
	if m.MinContamination != nil && result.ContaminationIndex < *m.MinContamination {
		return false
	}
	if m.MaxQuality != nil && result.QualityScore > *m.MaxQuality {
		return false
	}
	return true
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
