// Copyright 2024-2026 Aiku AI

package hidetag

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"
	"time"

	"github.com/caarlos0/env/v11"
	up "go.mau.fi/util/configupgrade"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// Config is the agent configuration.
type Config struct {
	Database  DatabaseConfig    `yaml:"database"`
	WhatsApp  WhatsAppConfig    `yaml:"whatsapp"`
	Reconnect ReconnectConfig   `yaml:"reconnect"`
	Rewrite   RewriteConfig     `yaml:"rewrite"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Logging   zeroconfig.Config `yaml:"logging"`

	terminalReasons []CloseReason      `yaml:"-"`
	reportTemplate  *template.Template `yaml:"-"`
}

// DatabaseConfig selects where whatsmeow keeps the device credentials.
type DatabaseConfig struct {
	Type string `yaml:"type" env:"HIDETAG_DATABASE_TYPE"`
	URI  string `yaml:"uri" env:"HIDETAG_DATABASE_URI"`
}

type WhatsAppConfig struct {
	// OSName is the device name shown in the phone's linked devices list.
	OSName string `yaml:"os_name" env:"HIDETAG_WHATSAPP_OS_NAME"`
}

type ReconnectConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" env:"HIDETAG_RECONNECT_MAX_ATTEMPTS"`
	InitialDelay    time.Duration `yaml:"initial_delay" env:"HIDETAG_RECONNECT_INITIAL_DELAY"`
	MaxDelay        time.Duration `yaml:"max_delay" env:"HIDETAG_RECONNECT_MAX_DELAY"`
	Multiplier      float64       `yaml:"multiplier" env:"HIDETAG_RECONNECT_MULTIPLIER"`
	TerminalReasons []string      `yaml:"terminal_reasons" env:"HIDETAG_RECONNECT_TERMINAL_REASONS"`
}

type RewriteConfig struct {
	// Timeout bounds resolving the group and sending the edit. Zero disables it.
	Timeout time.Duration `yaml:"timeout" env:"HIDETAG_REWRITE_TIMEOUT"`
	// ReportTemplate renders the status line shown for every rewrite.
	ReportTemplate string `yaml:"report_template" env:"HIDETAG_REWRITE_REPORT_TEMPLATE"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"HIDETAG_METRICS_ENABLED"`
	Listen  string `yaml:"listen" env:"HIDETAG_METRICS_LISTEN"`
}

// ReportParams holds the parameters for rendering the rewrite report template.
type ReportParams struct {
	GroupName    string
	Participants int
	Text         string
	Image        bool
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess validates the config and compiles derived values.
func (c *Config) PostProcess() error {
	if c.Database.Type == "" {
		return errors.New("database.type must be set")
	}
	if c.Database.URI == "" {
		return errors.New("database.uri must be set")
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must not be negative, got %d", c.Reconnect.MaxAttempts)
	}
	if c.Reconnect.InitialDelay < 0 || c.Reconnect.MaxDelay < 0 || c.Rewrite.Timeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = 2
	} else if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be at least 1, got %v", c.Reconnect.Multiplier)
	}
	c.terminalReasons = c.terminalReasons[:0]
	for _, name := range c.Reconnect.TerminalReasons {
		reason, err := ParseCloseReason(name)
		if err != nil {
			return fmt.Errorf("invalid reconnect.terminal_reasons entry: %w", err)
		}
		c.terminalReasons = append(c.terminalReasons, reason)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen must be set when metrics are enabled")
	}
	var err error
	c.reportTemplate, err = template.New("report").Parse(c.Rewrite.ReportTemplate)
	return err
}

// ReconnectPolicy builds the policy described by the reconnect section.
func (c *Config) ReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:  c.Reconnect.MaxAttempts,
		InitialDelay: c.Reconnect.InitialDelay,
		MaxDelay:     c.Reconnect.MaxDelay,
		Multiplier:   c.Reconnect.Multiplier,
		Terminal:     c.terminalReasons,
	}
}

// FormatReport renders the rewrite report template. It falls back to the
// built-in wording when the template is unset or fails.
func (c *Config) FormatReport(params ReportParams) string {
	if c.reportTemplate == nil || c.Rewrite.ReportTemplate == "" {
		return defaultReport(params)
	}
	var buf []byte
	err := c.reportTemplate.Execute(
		(*templateBuffer)(&buf),
		params,
	)
	if err != nil {
		return defaultReport(params)
	}
	return string(buf)
}

// templateBuffer is a simple io.Writer that appends to a byte slice.
type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "database", "type")
	helper.Copy(up.Str, "database", "uri")
	helper.Copy(up.Str, "whatsapp", "os_name")
	helper.Copy(up.Int, "reconnect", "max_attempts")
	helper.Copy(up.Str, "reconnect", "initial_delay")
	helper.Copy(up.Str, "reconnect", "max_delay")
	helper.Copy(up.Float|up.Int, "reconnect", "multiplier")
	helper.Copy(up.List, "reconnect", "terminal_reasons")
	helper.Copy(up.Str, "rewrite", "timeout")
	helper.Copy(up.Str, "rewrite", "report_template")
	helper.Copy(up.Bool, "metrics", "enabled")
	helper.Copy(up.Str, "metrics", "listen")
	helper.Copy(up.Map, "logging")
}

// Upgrader returns the config upgrader that merges a user config onto the
// example config.
func Upgrader() up.BaseUpgrader {
	return &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks: [][]string{
			{"database"},
			{"whatsapp"},
			{"reconnect"},
			{"rewrite"},
			{"metrics"},
			{"logging"},
		},
		Base: ExampleConfig,
	}
}

// LoadConfig reads the config at path, writing the example config there
// first if the file does not exist. When save is true the upgraded config
// is written back. HIDETAG_* environment variables override file values.
func LoadConfig(path string, save bool) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte(ExampleConfig), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write example config: %w", err)
		}
	}
	data, _, err := up.Do(path, save, Upgrader())
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data, applies environment overrides and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	for _, section := range []any{&c.Database, &c.WhatsApp, &c.Reconnect, &c.Rewrite, &c.Metrics} {
		if err := env.Parse(section); err != nil {
			return fmt.Errorf("failed to read environment overrides: %w", err)
		}
	}
	return nil
}

func defaultReport(params ReportParams) string {
	kind := "message"
	if params.Image {
		kind = "image message"
	}
	return fmt.Sprintf("New hidetag %s requested into group: %s (%d participants)\nHidetag message: %s",
		kind, params.GroupName, params.Participants, params.Text)
}
