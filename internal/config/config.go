// Package config resolves clustering run settings.
//
// Precedence, lowest to highest: built-in defaults, the YAML config
// file, LINKCLUST_* environment variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/grisedale/linkclust/internal/admit"
)

// Config is the resolved run configuration. An empty DBPath falls
// through to the store's default location.
type Config struct {
	ConfigPath   string
	DBPath       string
	Groups       []string
	AllHits      bool
	BestOnly     bool
	BSRThreshold float64
	IncludeRBH   bool
}

// Overrides carries command-line values into Resolve. Zero-value
// fields leave the lower layers in effect; pointer fields distinguish
// an absent flag from one set to false.
type Overrides struct {
	ConfigPath   string
	DBPath       string
	Groups       string // comma-separated, as given on the command line
	AllHits      *bool
	BestOnly     *bool
	BSRThreshold *float64
	IncludeRBH   *bool
}

type fileConfig struct {
	DBPath string   `yaml:"db_path"`
	Groups []string `yaml:"groups"`
	Policy struct {
		AllHits      *bool    `yaml:"all_hits"`
		BestOnly     *bool    `yaml:"best_only"`
		BSRThreshold *float64 `yaml:"bsr_threshold"`
	} `yaml:"policy"`
	IncludeRBH *bool `yaml:"include_rbh"`
}

// DefaultConfigPath is where Resolve looks when no --config flag is
// given.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".linkclust", "config.yaml")
}

// Resolve layers the config file, environment, and command-line
// overrides over the defaults. A missing config file is not an error.
func Resolve(opts Overrides) (Config, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := Config{
		ConfigPath:   path,
		BSRThreshold: admit.DefaultBSRThreshold,
		IncludeRBH:   true,
	}

	cfg, err := loadFile(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		applyString(&out.DBPath, cfg.DBPath)
		if len(cfg.Groups) > 0 {
			out.Groups = cfg.Groups
		}
		applyBool(&out.AllHits, cfg.Policy.AllHits)
		applyBool(&out.BestOnly, cfg.Policy.BestOnly)
		applyFloat(&out.BSRThreshold, cfg.Policy.BSRThreshold)
		applyBool(&out.IncludeRBH, cfg.IncludeRBH)
	}

	applyString(&out.DBPath, os.Getenv("LINKCLUST_DB"))
	if v := strings.TrimSpace(os.Getenv("LINKCLUST_GROUPS")); v != "" {
		out.Groups = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv("LINKCLUST_BSR")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return out, fmt.Errorf("parsing LINKCLUST_BSR: %w", err)
		}
		out.BSRThreshold = f
	}

	applyString(&out.DBPath, opts.DBPath)
	if g := strings.TrimSpace(opts.Groups); g != "" {
		out.Groups = strings.Split(g, ",")
	}
	applyBool(&out.AllHits, opts.AllHits)
	applyBool(&out.BestOnly, opts.BestOnly)
	applyFloat(&out.BSRThreshold, opts.BSRThreshold)
	applyBool(&out.IncludeRBH, opts.IncludeRBH)

	out.Groups = normalizeGroups(out.Groups)
	return out, nil
}

// Validate reports configuration errors that must stop a run before
// any edge is read.
func (c Config) Validate() error {
	if len(c.Groups) == 0 {
		return errors.New("no source groups configured (use --groups, LINKCLUST_GROUPS, or the config file)")
	}
	if c.AllHits && c.BestOnly {
		return errors.New("all-hits and best-only are mutually exclusive")
	}
	if c.BSRThreshold <= 0 {
		return fmt.Errorf("score ratio threshold must be positive, got %g", c.BSRThreshold)
	}
	return nil
}

// Policy returns the admission policy the configuration selects.
func (c Config) Policy() admit.Policy {
	return admit.Policy{AllHits: c.AllHits, BestOnly: c.BestOnly, BSRThreshold: c.BSRThreshold}
}

// normalizeGroups trims whitespace and drops empties and duplicates,
// preserving first-seen order.
func normalizeGroups(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

func applyString(dst *string, raw string) {
	if v := strings.TrimSpace(raw); v != "" {
		*dst = v
	}
}

func applyBool(dst, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func applyFloat(dst, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
