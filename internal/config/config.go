// Package config provides configuration loading for foreman.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/anthropics/foreman/internal/domain"
)

// Config holds the governor's runtime configuration.
type Config struct {
	DataDir       string        `koanf:"data_dir"`
	DBPath        string        `koanf:"db_path"`
	SafetyProfile string        `koanf:"safety_profile"`
	Budget        BudgetConfig  `koanf:"budget"`
	Routing       RoutingConfig `koanf:"routing"`
	Policy        PolicyConfig  `koanf:"policy"`
	Gate          GateConfig    `koanf:"gate"`
	Logging       LoggingConfig `koanf:"logging"`
}

// BudgetConfig controls per-phase token allocation.
type BudgetConfig struct {
	BaselineTokens int64              `koanf:"baseline_tokens"`
	CostRatios     map[string]float64 `koanf:"cost_ratios"`
	MinTokens      map[string]int64   `koanf:"min_tokens"`
	PhaseBaselines map[string]int64   `koanf:"phase_baselines"`
}

// RoutingConfig controls the tier snapshot lifecycle.
type RoutingConfig struct {
	StalenessHours int          `koanf:"staleness_hours"`
	Tiers          []TierConfig `koanf:"tiers"`
}

// TierConfig is one caller-supplied routing tier entry.
type TierConfig struct {
	Tier              string  `koanf:"tier"`
	ModelID           string  `koanf:"model_id"`
	Provider          string  `koanf:"provider"`
	MaxOutputTokens   int64   `koanf:"max_output_tokens"`
	MaxContextChars   int64   `koanf:"max_context_chars"`
	CostPerUnitInput  float64 `koanf:"cost_per_unit_input"`
	CostPerUnitOutput float64 `koanf:"cost_per_unit_output"`
	SafetyCompatible  bool    `koanf:"safety_compatible"`
}

// PolicyConfig controls the stuck-handling thresholds.
type PolicyConfig struct {
	EscalateAfterFailures int     `koanf:"escalate_after_failures"`
	ReplanAfterFailures   int     `koanf:"replan_after_failures"`
	FailureCeiling        int     `koanf:"failure_ceiling"`
	ReduceScopeBelow      float64 `koanf:"reduce_scope_below"`
}

// GateConfig controls the patch quality thresholds.
type GateConfig struct {
	SymbolLossRatio float64 `koanf:"symbol_loss_ratio"`
	SimilarityMin   float64 `koanf:"similarity_min"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level    string `koanf:"level"`
	Encoding string `koanf:"encoding"`
}

// topLevelKeys are config keys that live at the root of the document.
// Everything else follows the section.field_name pattern.
var topLevelKeys = map[string]bool{
	"data_dir":       true,
	"db_path":        true,
	"safety_profile": true,
}

const envPrefix = "FOREMAN_"

// Load reads configuration from a YAML file, overlays FOREMAN_*
// environment variables, applies defaults, and validates. An empty path
// skips the file and uses defaults plus environment only; a non-empty
// path that cannot be read is an error.
//
// Environment variables map to keys by stripping the prefix,
// lowercasing, and splitting on the first underscore:
//
//	FOREMAN_SAFETY_PROFILE        -> safety_profile
//	FOREMAN_BUDGET_BASELINE_TOKENS -> budget.baseline_tokens
//	FOREMAN_LOGGING_LEVEL          -> logging.level
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, domain.WrapGovernorError(domain.ErrConfigInvalid.Code,
				fmt.Sprintf("parse config file %s", path), err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, domain.WrapGovernorError(domain.ErrConfigInvalid.Code, "unmarshal config", err)
	}

	// Tier entries come from callers and are decoded strictly: an
	// unknown field on a tier is a config error, not ignorable noise.
	if k.Exists("routing.tiers") {
		var tiers []TierConfig
		if err := k.UnmarshalWithConf("routing.tiers", &tiers, koanf.UnmarshalConf{
			DecoderConfig: &mapstructure.DecoderConfig{
				ErrorUnused:      true,
				WeaklyTypedInput: true,
				Result:           &tiers,
			},
		}); err != nil {
			return nil, domain.WrapGovernorError(domain.ErrConfigInvalid.Code, "decode routing.tiers", err)
		}
		cfg.Routing.Tiers = tiers
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envToKey maps one environment variable name to its config key.
func envToKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if topLevelKeys[lower] {
		return lower
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./foreman-data"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "foreman.db")
	}
	if c.SafetyProfile == "" {
		c.SafetyProfile = string(domain.SafetyNormal)
	}
	if c.Budget.BaselineTokens == 0 {
		c.Budget.BaselineTokens = 4000
	}
	if len(c.Budget.CostRatios) == 0 {
		c.Budget.CostRatios = map[string]float64{"low": 1, "mid": 3, "high": 15}
	}
	if len(c.Budget.MinTokens) == 0 {
		c.Budget.MinTokens = map[string]int64{"low": 1000, "mid": 500, "high": 200}
	}
	if c.Routing.StalenessHours == 0 {
		c.Routing.StalenessHours = 24
	}
	if c.Policy.EscalateAfterFailures == 0 {
		c.Policy.EscalateAfterFailures = 2
	}
	if c.Policy.ReplanAfterFailures == 0 {
		c.Policy.ReplanAfterFailures = 3
	}
	if c.Policy.FailureCeiling == 0 {
		c.Policy.FailureCeiling = 4
	}
	if c.Policy.ReduceScopeBelow == 0 {
		c.Policy.ReduceScopeBelow = 0.2
	}
	if c.Gate.SymbolLossRatio == 0 {
		c.Gate.SymbolLossRatio = 0.3
	}
	if c.Gate.SimilarityMin == 0 {
		c.Gate.SimilarityMin = 0.6
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if _, err := domain.ParseSafetyProfile(c.SafetyProfile); err != nil {
		problems = append(problems, fmt.Sprintf("safety_profile %q is not valid; must be normal or strict", c.SafetyProfile))
	}
	if c.Budget.BaselineTokens <= 0 {
		problems = append(problems, "budget.baseline_tokens must be positive")
	}
	for tier, ratio := range c.Budget.CostRatios {
		if ratio <= 0 {
			problems = append(problems, fmt.Sprintf("budget.cost_ratios.%s must be positive", tier))
		}
	}
	for tier, min := range c.Budget.MinTokens {
		if min < 0 {
			problems = append(problems, fmt.Sprintf("budget.min_tokens.%s must not be negative", tier))
		}
	}
	for phase, baseline := range c.Budget.PhaseBaselines {
		if baseline <= 0 {
			problems = append(problems, fmt.Sprintf("budget.phase_baselines.%s must be positive", phase))
		}
	}
	if c.Routing.StalenessHours <= 0 {
		problems = append(problems, "routing.staleness_hours must be positive")
	}
	if c.Policy.EscalateAfterFailures < 1 {
		problems = append(problems, "policy.escalate_after_failures must be at least 1")
	}
	if c.Policy.ReplanAfterFailures < 1 {
		problems = append(problems, "policy.replan_after_failures must be at least 1")
	}
	if c.Policy.FailureCeiling < 1 {
		problems = append(problems, "policy.failure_ceiling must be at least 1")
	}
	if c.Policy.ReduceScopeBelow < 0 || c.Policy.ReduceScopeBelow > 1 {
		problems = append(problems, "policy.reduce_scope_below must be between 0 and 1")
	}
	if c.Gate.SymbolLossRatio < 0 || c.Gate.SymbolLossRatio > 1 {
		problems = append(problems, "gate.symbol_loss_ratio must be between 0 and 1")
	}
	if c.Gate.SimilarityMin < 0 || c.Gate.SimilarityMin > 1 {
		problems = append(problems, "gate.similarity_min must be between 0 and 1")
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("logging.encoding %q is not valid; must be json or console", c.Logging.Encoding))
	}

	if len(problems) > 0 {
		return domain.NewGovernorError(domain.ErrConfigInvalid.Code,
			fmt.Sprintf("%s: %s", domain.ErrConfigInvalid.Message, strings.Join(problems, "; ")))
	}
	return nil
}

// Staleness returns the snapshot staleness window as a duration.
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Routing.StalenessHours) * time.Hour
}

// TierRatios converts the configured cost ratios to tier keys.
func (c *Config) TierRatios() map[domain.Tier]float64 {
	out := make(map[domain.Tier]float64, len(c.Budget.CostRatios))
	for tier, ratio := range c.Budget.CostRatios {
		out[domain.Tier(tier)] = ratio
	}
	return out
}

// TierMins converts the configured minimum allocations to tier keys.
func (c *Config) TierMins() map[domain.Tier]int64 {
	out := make(map[domain.Tier]int64, len(c.Budget.MinTokens))
	for tier, min := range c.Budget.MinTokens {
		out[domain.Tier(tier)] = min
	}
	return out
}

// RoutingEntries converts configured tiers into routing entries. An
// empty configuration yields nil, which callers treat as "use the
// built-in ladder".
func (c *Config) RoutingEntries() []domain.RoutingEntry {
	if len(c.Routing.Tiers) == 0 {
		return nil
	}
	entries := make([]domain.RoutingEntry, 0, len(c.Routing.Tiers))
	for _, t := range c.Routing.Tiers {
		entries = append(entries, domain.RoutingEntry{
			Tier:              domain.Tier(t.Tier),
			ModelID:           t.ModelID,
			Provider:          t.Provider,
			MaxOutputTokens:   t.MaxOutputTokens,
			MaxContextChars:   t.MaxContextChars,
			CostPerUnitInput:  t.CostPerUnitInput,
			CostPerUnitOutput: t.CostPerUnitOutput,
			SafetyCompatible:  t.SafetyCompatible,
		})
	}
	return entries
}
