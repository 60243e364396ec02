// Package config loads and validates indexd's configuration: where to
// find and store catalog data, which default rule set new locations
// get, and where the media gateway binds (spec §5, §6).
//
// Grounded on the teacher's internal/config/resolver.go for the layered
// resolution shape (koanf.Koanf + confmap.Provider merging defaults,
// then a config file, then environment overrides, last-writer-wins) and
// internal/config/env.go for the env-var-to-flat-map convention (env
// vars renamed from HARVX_* to INDEXD_* per the dropped-Harvx-identity
// decision recorded in DESIGN.md). The teacher's multi-profile
// ([profile.NAME] sections, global+repo+standalone file layers) has no
// equivalent here -- a location's config is single, unnamed -- so only
// the core layering mechanism is kept, not the profile indirection.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/providers/confmap"
	koanf "github.com/knadh/koanf/v2"

	"github.com/nonlocal/indexd/internal/rules"
)

// Environment variable overrides, the INDEXD_* analogue of the teacher's
// HARVX_* constants.
const (
	EnvDataDirectory = "INDEXD_DATA_DIRECTORY"
	EnvGatewayAddr   = "INDEXD_GATEWAY_ADDRESS"
	EnvLogFormat     = "INDEXD_LOG_FORMAT"
	EnvDebug         = "INDEXD_DEBUG"
)

// RuleConfig is the TOML-decodable shape of one rule (spec §3's four
// kinds, named the way a location's config file would name them).
type RuleConfig struct {
	Kind       string   `toml:"kind"`
	Name       string   `toml:"name"`
	Glob       string   `toml:"glob,omitempty"`
	ChildNames []string `toml:"child_names,omitempty"`
}

// ToRule converts a decoded RuleConfig into the rule engine's Rule type,
// rejecting unknown kind names.
func (rc RuleConfig) ToRule() (rules.Rule, error) {
	switch rc.Kind {
	case "accept_files_by_glob":
		return rules.NewGlobRule(rules.AcceptFilesByGlob, rc.Name, rc.Glob), nil
	case "reject_files_by_glob":
		return rules.NewGlobRule(rules.RejectFilesByGlob, rc.Name, rc.Glob), nil
	case "accept_if_children_directories_are_present":
		return rules.NewChildrenRule(rules.AcceptIfChildrenDirectoriesArePresent, rc.Name, rc.ChildNames), nil
	case "reject_if_children_directories_are_present":
		return rules.NewChildrenRule(rules.RejectIfChildrenDirectoriesArePresent, rc.Name, rc.ChildNames), nil
	default:
		return rules.Rule{}, fmt.Errorf("config: unknown rule kind %q", rc.Kind)
	}
}

// Config is indexd's resolved configuration.
type Config struct {
	DataDirectory      string       `koanf:"data_directory"`
	ThumbnailDirectory string       `koanf:"thumbnail_directory"`
	GatewayAddress     string       `koanf:"gateway_address"`
	LogFormat          string       `koanf:"log_format"`
	DefaultRules       []RuleConfig `koanf:"-"` // merged separately, see below
}

// defaultRules is the rule set indexd applies to newly registered
// locations when a config file doesn't override it: it excludes VCS
// metadata and common dependency/build directories, mirroring the rule
// combination original_source/core/src/location/indexer/walk.rs's own
// tests exercise (git_repos_without_deps_or_build_dirs).
func defaultRules() []RuleConfig {
	return []RuleConfig{
		{Kind: "reject_files_by_glob", Name: "vcs metadata", Glob: "**/{.git,.git/*}"},
		{Kind: "reject_files_by_glob", Name: "dependency directories", Glob: "**/{node_modules/*,node_modules,vendor/*,vendor}"},
		{Kind: "reject_files_by_glob", Name: "build output", Glob: "**/{target/*,target,dist/*,dist,build/*,build}"},
	}
}

func defaultsMap() map[string]any {
	return map[string]any{
		"data_directory":      "./indexd-data",
		"thumbnail_directory": "./indexd-data/thumbnails",
		"gateway_address":     "127.0.0.1:7417",
		"log_format":          "text",
	}
}

// Defaults returns the configuration indexd runs with when no config
// file or environment override is present.
func Defaults() *Config {
	return &Config{
		DataDirectory:      "./indexd-data",
		ThumbnailDirectory: "./indexd-data/thumbnails",
		GatewayAddress:     "127.0.0.1:7417",
		LogFormat:          "text",
		DefaultRules:       defaultRules(),
	}
}

// Load resolves the final Config by layering, in increasing priority:
// built-in defaults, an optional TOML file at path, and INDEXD_*
// environment variables. Each layer is merged via koanf's confmap
// provider, the same last-writer-wins mechanism the teacher's
// resolver.go uses across its default/global/repo/env layers.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	fileRules := defaultRules()
	if path != "" {
		fileMap, rulesFromFile, err := loadFileLayer(path)
		if err != nil {
			return nil, err
		}
		if fileMap != nil {
			if err := k.Load(confmap.Provider(fileMap, "."), nil); err != nil {
				return nil, fmt.Errorf("config: merging %s: %w", path, err)
			}
		}
		if rulesFromFile != nil {
			fileRules = rulesFromFile
		}
	}

	if envMap := buildEnvMap(); len(envMap) > 0 {
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			return nil, fmt.Errorf("config: merging environment: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.DefaultRules = fileRules
	return &cfg, nil
}

// loadFileLayer parses a TOML file into a flat map suitable for a koanf
// confmap.Provider, plus any [[default_rules]] entries it declares.
// A missing file is not an error -- it simply contributes nothing.
func loadFileLayer(path string) (map[string]any, []RuleConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	var raw struct {
		DataDirectory      string       `toml:"data_directory"`
		ThumbnailDirectory string       `toml:"thumbnail_directory"`
		GatewayAddress     string       `toml:"gateway_address"`
		LogFormat          string       `toml:"log_format"`
		DefaultRules       []RuleConfig `toml:"default_rules"`
	}
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	warnUndecodedKeys(meta, path)

	flat := make(map[string]any)
	if raw.DataDirectory != "" {
		flat["data_directory"] = raw.DataDirectory
	}
	if raw.ThumbnailDirectory != "" {
		flat["thumbnail_directory"] = raw.ThumbnailDirectory
	}
	if raw.GatewayAddress != "" {
		flat["gateway_address"] = raw.GatewayAddress
	}
	if raw.LogFormat != "" {
		flat["log_format"] = raw.LogFormat
	}

	var ruleOverride []RuleConfig
	if len(raw.DefaultRules) > 0 {
		ruleOverride = raw.DefaultRules
	}
	return flat, ruleOverride, nil
}

// buildEnvMap reads INDEXD_* environment variables into a flat map for
// the env layer. Only non-empty vars are included, mirroring the
// teacher's buildEnvMap in env.go.
func buildEnvMap() map[string]any {
	m := make(map[string]any)
	if v := os.Getenv(EnvDataDirectory); v != "" {
		m["data_directory"] = v
	}
	if v := os.Getenv(EnvGatewayAddr); v != "" {
		m["gateway_address"] = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		m["log_format"] = v
	}
	return m
}

func warnUndecodedKeys(meta toml.MetaData, source string) {
	undecoded := meta.Undecoded()
	if len(undecoded) == 0 {
		return
	}
	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}
	slog.Warn("unknown config keys will be ignored",
		"source", source,
		"keys", strings.Join(keys, ", "),
	)
}

// RuleSet converts every DefaultRules entry into the rule engine's
// grouped form, failing on the first unrecognized rule kind.
func (c *Config) RuleSet() (rules.ByKind, error) {
	rs := make([]rules.Rule, 0, len(c.DefaultRules))
	for _, rc := range c.DefaultRules {
		r, err := rc.ToRule()
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rules.Group(rs), nil
}

// SetupLogging configures the global slog default logger. format should
// be "json" for structured output or anything else (including empty) for
// human-readable text. Output always goes to os.Stderr, keeping stdout
// free for the CLI's own piped output.
func SetupLogging(level slog.Level, format string) {
	SetupLoggingWithWriter(level, format, os.Stderr)
}

// SetupLoggingWithWriter is SetupLogging with an explicit writer, used by
// tests to capture log output instead of writing to os.Stderr.
func SetupLoggingWithWriter(level slog.Level, format string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ResolveLogLevel applies indexd's verbosity precedence: INDEXD_DEBUG=1
// beats --verbose beats --quiet beats the info-level default.
func ResolveLogLevel(verbose, quiet bool) slog.Level {
	if os.Getenv(EnvDebug) == "1" {
		return slog.LevelDebug
	}
	if verbose {
		return slog.LevelDebug
	}
	if quiet {
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ResolveLogFormat reads INDEXD_LOG_FORMAT for the bootstrap logger set
// up before a config file has been loaded (PersistentPreRunE runs
// before any subcommand reads its --config flag).
func ResolveLogFormat() string {
	if strings.EqualFold(os.Getenv(EnvLogFormat), "json") {
		return "json"
	}
	return "text"
}

// NewLogger returns a child logger tagged with a "component" attribute,
// the same convention every package under internal/ follows.
func NewLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
