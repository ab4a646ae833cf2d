package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"TransportBench/internal/model"
)

func TestLoadConfig_Repository(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Protocol() != model.ProtocolTCP {
		t.Errorf("Expected tcp, got %s", cfg.Protocol())
	}
	if cfg.CaptureFilter() != "tcp port 5201" {
		t.Errorf("Unexpected capture filter %q", cfg.CaptureFilter())
	}
	if len(cfg.Writers) != 3 {
		t.Errorf("Expected 3 writers, got %d", len(cfg.Writers))
	}
	if d, _ := cfg.SnapshotInterval(); d != 5*time.Second {
		t.Errorf("Expected 5s snapshot interval, got %s", d)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("run:\n  label: quic_server\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Run.Protocol != "tcp" || cfg.Capture.SnapshotLen != 1600 {
		t.Errorf("Defaults not applied: %+v", cfg)
	}
	if cfg.Probe.Subject == "" || cfg.Probe.NATSURL == "" {
		t.Errorf("NATS defaults not applied: %+v", cfg.Probe)
	}
	if cfg.CaptureFilter() != "" {
		t.Errorf("No port means no filter, got %q", cfg.CaptureFilter())
	}
}

func TestParse_QUICFilter(t *testing.T) {
	cfg, err := Parse([]byte("run:\n  protocol: quic\ncapture:\n  port: 4433\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.CaptureFilter() != "udp port 4433" {
		t.Errorf("Unexpected filter %q", cfg.CaptureFilter())
	}
	if cfg.Protocol().Sequenced() {
		t.Error("QUIC must not be treated as sequenced")
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"protocol": "run:\n  protocol: sctp\n",
		"interval": "engine:\n  snapshot_interval: soon\n",
		"port":     "capture:\n  port: 70000\n",
		"writer":   "writers:\n  - enabled: true\n",
		"yaml":     "run: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
	path := filepath.Join(t.TempDir(), "ok.yaml")
	if err := os.WriteFile(path, []byte("run:\n  protocol: bbr\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil || cfg.Protocol() != model.ProtocolTCP {
		t.Fatalf("bbr should load as a TCP run, got %v, %v", cfg, err)
	}
	if cfg.CongestionControl() != "bbr" {
		t.Errorf("Expected congestion control 'bbr', got %q", cfg.CongestionControl())
	}
}

func TestParse_AlerterRuleScope(t *testing.T) {
	cfg, err := Parse([]byte(`
alerter:
  rules:
    - name: lossy
      metric: avg_loss_percent
      operator: ">"
      threshold: 1
    - name: jittery-second
      scope: window
      metric: jitter_ms
      operator: ">"
      threshold: 5
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Alerter.Rules[0].Scope != ScopeRun || cfg.Alerter.Rules[1].Scope != ScopeWindow {
		t.Errorf("Unexpected rule scopes %+v", cfg.Alerter.Rules)
	}
	if cfg.CongestionControl() != "" {
		t.Errorf("Plain tcp names no congestion control, got %q", cfg.CongestionControl())
	}

	if _, err := Parse([]byte(`alerter:
  rules:
    - name: x
      scope: flow
`)); err == nil {
		t.Error("Expected an error for an unknown rule scope")
	}
}
