// Package config loads the optional proctrace settings file. CLI
// flags always take precedence; this package only supplies defaults
// for values the user didn't pass on the command line.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// Config holds every setting that can be supplied via --config instead
// of flags.
type Config struct {
	// BpftracePath is the path to the bpftrace binary used to run the
	// tracer script. Defaults to "bpftrace" (resolved via PATH).
	BpftracePath string `yaml:"bpftrace_path" mapstructure:"bpftrace_path"`

	// PrivilegeCommand is prepended to the tracer invocation so it can
	// run with elevated privileges. Defaults to "sudo".
	PrivilegeCommand string `yaml:"privilege_command" mapstructure:"privilege_command"`

	// Color controls whether the by-process render view uses ANSI
	// highlighting. Nil means "auto" (on iff stdout is a terminal).
	Color *bool `yaml:"color" mapstructure:"color"`

	// GanttOtherSectionName is loaded and defaulted to "other", but the
	// Gantt/Mermaid view does not read it: that view always titles its
	// non-root section "other".
	GanttOtherSectionName string `yaml:"gantt_other_section" mapstructure:"gantt_other_section"`
}

// Default returns the built-in defaults, used when no --config file is
// given and as the base that a config file's values are layered onto.
func Default() *Config {
	return &Config{
		BpftracePath:          "bpftrace",
		PrivilegeCommand:      "sudo",
		GanttOtherSectionName: "other",
	}
}

// Load reads and validates a YAML config file, starting from Default()
// so that a file only needs to mention the keys it overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: could not read %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: could not parse %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate sanity-checks the config's values.
func (c *Config) Validate() error {
	if c.BpftracePath == "" {
		return fmt.Errorf("config: bpftrace_path must not be empty")
	}
	if c.PrivilegeCommand == "" {
		return fmt.Errorf("config: privilege_command must not be empty")
	}
	return nil
}

// ApplyOverrides merges a set of explicitly-set flag values (as a
// generic map, e.g. {"bpftrace_path": "/usr/bin/bpftrace"}) onto cfg,
// so that CLI flags win over file-provided defaults without the
// caller needing to know which fields a flag maps to ahead of time.
func (c *Config) ApplyOverrides(overrides map[string]interface{}) error {
	if len(overrides) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           c,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("config: internal decoder error: %w", err)
	}
	if err := decoder.Decode(overrides); err != nil {
		return fmt.Errorf("config: invalid override values: %w", err)
	}
	return nil
}
