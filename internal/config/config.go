package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"TransportBench/internal/model"
)

// RunConfig identifies what is being measured.
type RunConfig struct {
	Protocol string `yaml:"protocol"`
	Label    string `yaml:"label"`
}

// PersistenceConfig holds the settings for saving a copy of a live capture.
type PersistenceConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Path              string `yaml:"path"`
	ChannelBufferSize int    `yaml:"channel_buffer_size"`
}

// CaptureConfig holds the settings for live capture.
type CaptureConfig struct {
	Interface   string            `yaml:"iface"`
	Port        int               `yaml:"port"`
	Filter      string            `yaml:"filter"`
	SnapshotLen int32             `yaml:"snapshot_len"`
	Promiscuous bool              `yaml:"promiscuous"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// ProbeConfig holds the NATS settings shared by the probe and the engine.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// EngineConfig holds the settings of the live collector.
type EngineConfig struct {
	InputBuffer      int    `yaml:"input_buffer"`
	SnapshotInterval string `yaml:"snapshot_interval"`
	MetricsAddr      string `yaml:"metrics_addr"`
	GRPCAddr         string `yaml:"grpc_addr"`
}

// JSONWriterConfig holds the settings of the JSON report writer.
type JSONWriterConfig struct {
	Path string `yaml:"path"`
}

// CSVWriterConfig holds the settings of the CSV writer.
type CSVWriterConfig struct {
	TimelinePath string `yaml:"timeline_path"`
	SummaryPath  string `yaml:"summary_path"`
}

// ClickHouseConfig holds the connection settings for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WriterDef defines one output of a run.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	JSON       JSONWriterConfig `yaml:"json"`
	CSV        CSVWriterConfig  `yaml:"csv"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// APIConfig holds the settings of the query API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Alerter rule scopes.
const (
	ScopeRun    = "run"
	ScopeWindow = "window"
)

// AlerterRule is a threshold on one metric. Run-scoped rules test the run
// summary; window-scoped rules test every non-empty 1-second window.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Scope     string  `yaml:"scope"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alerting rules.
type AlerterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rules   []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings of the e-mail notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Capture CaptureConfig `yaml:"capture"`
	Probe   ProbeConfig   `yaml:"probe"`
	Engine  EngineConfig  `yaml:"engine"`
	Writers []WriterDef   `yaml:"writers"`
	API     APIConfig     `yaml:"api"`
	Alerter AlerterConfig `yaml:"alerter"`
	SMTP    SMTPConfig    `yaml:"smtp"`
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills in defaults and rejects values the binaries cannot use.
func (c *Config) Validate() error {
	if c.Run.Protocol == "" {
		c.Run.Protocol = string(model.ProtocolTCP)
	}
	if _, err := model.ParseProtocol(c.Run.Protocol); err != nil {
		return fmt.Errorf("invalid run protocol: %w", err)
	}
	if c.Capture.Port < 0 || c.Capture.Port > 65535 {
		return fmt.Errorf("invalid capture port %d", c.Capture.Port)
	}
	if c.Capture.SnapshotLen <= 0 {
		c.Capture.SnapshotLen = 1600
	}
	if c.Probe.NATSURL == "" {
		c.Probe.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Probe.Subject == "" {
		c.Probe.Subject = "tb.observations"
	}
	if c.Engine.SnapshotInterval == "" {
		c.Engine.SnapshotInterval = "5s"
	}
	if _, err := c.SnapshotInterval(); err != nil {
		return err
	}
	for i := range c.Alerter.Rules {
		rule := &c.Alerter.Rules[i]
		if rule.Scope == "" {
			rule.Scope = ScopeRun
		}
		if rule.Scope != ScopeRun && rule.Scope != ScopeWindow {
			return fmt.Errorf("alerter rule '%s' has invalid scope '%s'", rule.Name, rule.Scope)
		}
	}
	for i, w := range c.Writers {
		if w.Type == "" {
			return fmt.Errorf("writer %d has no type", i)
		}
	}
	return nil
}

// Protocol returns the parsed run protocol.
func (c *Config) Protocol() model.Protocol {
	p, err := model.ParseProtocol(c.Run.Protocol)
	if err != nil {
		return model.ProtocolTCP
	}
	return p
}

// CongestionControl returns the congestion-control variant named by the run
// protocol, or "".
func (c *Config) CongestionControl() string {
	return model.CongestionControl(c.Run.Protocol)
}

// CaptureFilter returns the BPF filter for live capture: the explicit
// filter if set, otherwise one derived from the protocol and port.
func (c *Config) CaptureFilter() string {
	if c.Capture.Filter != "" {
		return c.Capture.Filter
	}
	if c.Capture.Port == 0 {
		return ""
	}
	return c.Protocol().BPFFilter(c.Capture.Port)
}

// SnapshotInterval returns the parsed engine snapshot interval.
func (c *Config) SnapshotInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.SnapshotInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid engine snapshot_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("engine snapshot_interval must not be negative")
	}
	return d, nil
}
