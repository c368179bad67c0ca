package eventbus

import "testing"

func TestConfigTypedAccessorsFallBackOnMismatch(t *testing.T) {
	cfg := NewConfig(map[string]any{
		"threads": float64(8), // as a YAML/JSON decoder would hand it back
		"name":    "primary",
		"strict":  true,
		"tags":    []any{"a", "b"},
	})

	if got := cfg.Int("threads", 1); got != 8 {
		t.Fatalf("Int(threads) = %d, want 8", got)
	}
	if got := cfg.Int("name", 99); got != 99 {
		t.Fatalf("Int(name) = %d, want default 99 (name is a string, not numeric)", got)
	}
	if got := cfg.String("name", ""); got != "primary" {
		t.Fatalf("String(name) = %q, want primary", got)
	}
	if !cfg.Bool("strict", false) {
		t.Fatalf("Bool(strict) = false, want true")
	}
	if got := cfg.StringSlice("tags", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("StringSlice(tags) = %v, want [a b]", got)
	}
	if cfg.Has("missing") {
		t.Fatalf("Has(missing) = true, want false")
	}
}

func TestFromYAMLParsesBusConfigFields(t *testing.T) {
	yamlDoc := []byte("match_policy: exact_supertypes\nthreads: 8\nbuffer_size: 64\n")

	cfg, err := FromYAML(yamlDoc)
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}

	busCfg := BusConfigFromMap(cfg)
	if busCfg.MatchPolicy != ExactWithSuperTypes {
		t.Fatalf("MatchPolicy = %v, want ExactWithSuperTypes", busCfg.MatchPolicy)
	}
	if busCfg.NumberOfThreads != 8 {
		t.Fatalf("NumberOfThreads = %d, want 8", busCfg.NumberOfThreads)
	}
	if busCfg.BufferSize != 64 {
		t.Fatalf("BufferSize = %d, want 64", busCfg.BufferSize)
	}
}
