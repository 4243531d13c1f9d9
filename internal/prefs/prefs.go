package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"astraconsole/internal/astra"
)

const StorageKey = "astratickets_ai_client_config"

type AIProviderConfig struct {
	Provider          string  `json:"provider"`
	BaseURL           string  `json:"baseUrl"`
	APIKey            string  `json:"apiKey"`
	Model             string  `json:"model"`
	DistanceThreshold float64 `json:"distanceThreshold"`
}

func Defaults() AIProviderConfig {
	return AIProviderConfig{
		Provider:          "local",
		BaseURL:           "https://api.openai.com",
		Model:             "gpt-3.5-turbo",
		APIKey:            "",
		DistanceThreshold: 1.0,
	}
}

// KV is the session-scoped storage the config lives in.
type KV interface {
	Value(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
}

// stored mirrors the persisted blob with every field optional.
type stored struct {
	Provider          *string  `json:"provider"`
	BaseURL           *string  `json:"baseUrl"`
	APIKey            *string  `json:"apiKey"`
	Model             *string  `json:"model"`
	DistanceThreshold *float64 `json:"distanceThreshold"`
}

func read(ctx context.Context, kv KV) (stored, bool) {
	raw, found, err := kv.Value(ctx, StorageKey)
	if err != nil || !found || strings.TrimSpace(raw) == "" {
		return stored{}, false
	}
	var s stored
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return stored{}, false
	}
	return s, true
}

// Load never fails: absent, unreadable or malformed config yields Defaults,
// and each missing or empty field takes its default.
func Load(ctx context.Context, kv KV) AIProviderConfig {
	s, ok := read(ctx, kv)
	if !ok {
		return Defaults()
	}
	return merge(s)
}

// Save merges cfg over the defaults with the same rule as Load and persists
// the result.
func Save(ctx context.Context, kv KV, cfg AIProviderConfig) (AIProviderConfig, error) {
	threshold := &cfg.DistanceThreshold
	if math.IsNaN(cfg.DistanceThreshold) || cfg.DistanceThreshold < 0 {
		threshold = nil
	}
	next := merge(stored{
		Provider:          &cfg.Provider,
		BaseURL:           &cfg.BaseURL,
		APIKey:            &cfg.APIKey,
		Model:             &cfg.Model,
		DistanceThreshold: threshold,
	})
	b, err := json.Marshal(next)
	if err != nil {
		return AIProviderConfig{}, fmt.Errorf("marshal ai config: %w", err)
	}
	if err := kv.SetValue(ctx, StorageKey, string(b)); err != nil {
		return AIProviderConfig{}, fmt.Errorf("save ai config: %w", err)
	}
	return next, nil
}

// Overrides returns the stored settings as per-request backend overrides.
// Nothing stored means no overrides, leaving the backend on its defaults.
func Overrides(ctx context.Context, kv KV) (astra.ProviderOverrides, *float64) {
	s, ok := read(ctx, kv)
	if !ok {
		return astra.ProviderOverrides{}, nil
	}
	return astra.ProviderOverrides{
		Provider: deref(s.Provider),
		BaseURL:  deref(s.BaseURL),
		Model:    deref(s.Model),
		APIKey:   deref(s.APIKey),
	}, s.DistanceThreshold
}

func merge(s stored) AIProviderConfig {
	def := Defaults()
	out := AIProviderConfig{
		Provider:          orDefault(s.Provider, def.Provider),
		BaseURL:           orDefault(s.BaseURL, def.BaseURL),
		APIKey:            deref(s.APIKey),
		Model:             orDefault(s.Model, def.Model),
		DistanceThreshold: def.DistanceThreshold,
	}
	if s.DistanceThreshold != nil {
		out.DistanceThreshold = *s.DistanceThreshold
	}
	return out
}

func orDefault(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return strings.TrimSpace(*v)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
