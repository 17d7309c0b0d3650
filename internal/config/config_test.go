package config

import (
	"os"
	"path/filepath"
	"testing"
)

// absentConfig returns a path no file exists at, so a test never picks
// up a real user config.
func absentConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve(Overrides{ConfigPath: absentConfig(t)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.BSRThreshold != 0.25 {
		t.Errorf("BSRThreshold = %g, want 0.25", cfg.BSRThreshold)
	}
	if !cfg.IncludeRBH {
		t.Error("IncludeRBH should default to true")
	}
	if cfg.AllHits || cfg.BestOnly {
		t.Error("policy flags should default to false")
	}
	if len(cfg.Groups) != 0 {
		t.Errorf("Groups = %v, want none", cfg.Groups)
	}
}

func TestResolveReadsConfigFile(t *testing.T) {
	path := writeConfig(t, `db_path: /tmp/from-config.db
groups:
  - pf
  - sc
policy:
  best_only: true
  bsr_threshold: 0.5
include_rbh: false
`)

	cfg, err := Resolve(Overrides{ConfigPath: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath != "/tmp/from-config.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if len(cfg.Groups) != 2 || cfg.Groups[0] != "pf" || cfg.Groups[1] != "sc" {
		t.Errorf("Groups = %v, want [pf sc]", cfg.Groups)
	}
	if !cfg.BestOnly || cfg.AllHits {
		t.Errorf("policy flags = all_hits %v, best_only %v", cfg.AllHits, cfg.BestOnly)
	}
	if cfg.BSRThreshold != 0.5 {
		t.Errorf("BSRThreshold = %g, want 0.5", cfg.BSRThreshold)
	}
	if cfg.IncludeRBH {
		t.Error("IncludeRBH should be false from config")
	}
}

func TestResolvePrecedenceConfigEnvCLI(t *testing.T) {
	path := writeConfig(t, `db_path: /tmp/from-config.db
groups: [pf]
policy:
  bsr_threshold: 0.5
`)
	t.Setenv("LINKCLUST_DB", "/tmp/from-env.db")
	t.Setenv("LINKCLUST_GROUPS", "sc,ca")
	t.Setenv("LINKCLUST_BSR", "0.4")

	bsr := 0.3
	cfg, err := Resolve(Overrides{
		ConfigPath:   path,
		DBPath:       "/tmp/from-cli.db",
		BSRThreshold: &bsr,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath != "/tmp/from-cli.db" {
		t.Errorf("DBPath = %q, want the CLI value", cfg.DBPath)
	}
	if cfg.BSRThreshold != 0.3 {
		t.Errorf("BSRThreshold = %g, want the CLI value 0.3", cfg.BSRThreshold)
	}
	// No CLI groups, so the environment wins over the file.
	if len(cfg.Groups) != 2 || cfg.Groups[0] != "sc" || cfg.Groups[1] != "ca" {
		t.Errorf("Groups = %v, want [sc ca] from env", cfg.Groups)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `db_path: /tmp/from-config.db`)
	t.Setenv("LINKCLUST_DB", "/tmp/from-env.db")

	cfg, err := Resolve(Overrides{ConfigPath: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DBPath != "/tmp/from-env.db" {
		t.Errorf("DBPath = %q, want the env value", cfg.DBPath)
	}
}

func TestResolveBadEnvThreshold(t *testing.T) {
	t.Setenv("LINKCLUST_BSR", "not-a-number")
	if _, err := Resolve(Overrides{ConfigPath: absentConfig(t)}); err == nil {
		t.Fatal("expected error for malformed LINKCLUST_BSR")
	}
}

func TestResolveBadYAML(t *testing.T) {
	path := writeConfig(t, "groups: [pf\n")
	if _, err := Resolve(Overrides{ConfigPath: path}); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestResolveNormalizesGroups(t *testing.T) {
	cfg, err := Resolve(Overrides{
		ConfigPath: absentConfig(t),
		Groups:     " pf , sc ,, pf ",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(cfg.Groups) != 2 || cfg.Groups[0] != "pf" || cfg.Groups[1] != "sc" {
		t.Errorf("Groups = %v, want [pf sc]", cfg.Groups)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Groups: []string{"pf"}, BSRThreshold: 0.25}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"no groups", func(c *Config) { c.Groups = nil }},
		{"exclusive flags", func(c *Config) { c.AllHits, c.BestOnly = true, true }},
		{"zero threshold", func(c *Config) { c.BSRThreshold = 0 }},
		{"negative threshold", func(c *Config) { c.BSRThreshold = -1 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mut(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPolicySelection(t *testing.T) {
	c := Config{BestOnly: true, BSRThreshold: 0.4}
	p := c.Policy()
	if !p.BestOnly || p.AllHits {
		t.Errorf("policy = %+v", p)
	}
	if p.BSRThreshold != 0.4 {
		t.Errorf("BSRThreshold = %g, want 0.4", p.BSRThreshold)
	}
}
