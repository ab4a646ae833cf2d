package alerter

import (
	"errors"
	"strings"
	"testing"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
)

type recordingNotifier struct {
	subject, body string
	calls         int
	err           error
}

func (n *recordingNotifier) Send(subject, body string) error {
	n.calls++
	n.subject, n.body = subject, body
	return n.err
}

func report() *model.Report {
	return &model.Report{
		RunID:                "run-1",
		Protocol:             model.ProtocolTCP,
		TotalDurationSeconds: 10,
		Summary: model.RunSummary{
			TotalPackets:         1000,
			AvgBandwidthMbps:     8.5,
			TotalRetransmissions: model.Some(12),
			AvgLossPercent:       model.Some(1.2),
		},
	}
}

func TestCheck(t *testing.T) {
	cases := []struct {
		value, threshold float64
		op               string
		want             bool
	}{
		{5, 4, ">", true},
		{4, 4, ">", false},
		{4, 4, ">=", true},
		{3, 4, "<", true},
		{4, 4, "<=", true},
		{4, 4, "=", true},
		{4, 4, "!", false},
	}
	for _, c := range cases {
		if got := check(c.value, c.threshold, c.op); got != c.want {
			t.Errorf("check(%v %s %v) = %v, want %v", c.value, c.op, c.threshold, got, c.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	a, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "lossy", Metric: "avg_loss_percent", Operator: ">", Threshold: 1},
		{Name: "slow", Metric: "avg_bandwidth_mbps", Operator: "<", Threshold: 5},
		{Name: "no rtt", Metric: "rtt_ms", Operator: ">=", Threshold: 0},
	}}, nil)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	violations := a.Evaluate(report())
	if len(violations) != 1 || violations[0].Rule.Name != "lossy" || violations[0].Value != 1.2 {
		t.Errorf("Expected only the loss rule, got %+v", violations)
	}
}

func TestEvaluate_WindowRules(t *testing.T) {
	a, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "lossy-second", Scope: config.ScopeWindow, Metric: "loss_percent", Operator: ">", Threshold: 0.5},
		{Name: "jittery-second", Scope: config.ScopeWindow, Metric: "jitter_ms", Operator: ">", Threshold: 5},
	}}, nil)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	r := report()
	r.Windows = []model.WindowMetrics{
		{Index: 0, Packets: 100, JitterMs: 1, LossPercent: model.Some(0.0)},
		{Index: 1, Packets: 100, JitterMs: 7.5, LossPercent: model.Some(2.0)},
		{Index: 2, Packets: 0, JitterMs: 0, LossPercent: model.Some(0.0)},
		{Index: 3, Packets: 50, JitterMs: 6, LossPercent: model.Some(0.0)},
	}
	violations := a.Evaluate(r)
	if len(violations) != 3 {
		t.Fatalf("Expected 3 window violations, got %+v", violations)
	}
	want := []struct {
		rule   string
		second int
	}{{"lossy-second", 1}, {"jittery-second", 1}, {"jittery-second", 3}}
	for i, w := range want {
		got := violations[i]
		if second, ok := got.Second.Get(); got.Rule.Name != w.rule || !ok || second != w.second {
			t.Errorf("Violation %d: expected %s in second %d, got %s in %v", i, w.rule, w.second, got.Rule.Name, got.Second)
		}
	}

	body := Render(r, violations)
	if !strings.Contains(body, "jittery-second") || !strings.Contains(body, "<td>3</td>") {
		t.Errorf("Expected the offending second in the rendered table, got %q", body)
	}
}

func TestEvaluate_WindowRuleSkipsNotApplicable(t *testing.T) {
	a, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "lossy-second", Scope: config.ScopeWindow, Metric: "loss_percent", Operator: ">=", Threshold: 0},
	}}, nil)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}
	quic := &model.Report{Protocol: model.ProtocolQUIC, Windows: []model.WindowMetrics{{Index: 0, Packets: 10}}}
	if v := a.Evaluate(quic); len(v) != 0 {
		t.Errorf("Loss rules must not fire on QUIC windows, got %+v", v)
	}
}

func TestEvaluate_StabilityAndTraceMetrics(t *testing.T) {
	a, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "unstable", Metric: "bandwidth_cv_percent", Operator: ">=", Threshold: 20},
		{Name: "trace-jitter", Metric: "trace_jitter_ms", Operator: ">", Threshold: 10},
	}}, nil)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	r := report()
	r.Summary.Stability = model.BandwidthStability{CVPercent: 25}
	if v := a.Evaluate(r); len(v) != 1 || v[0].Rule.Name != "unstable" || v[0].Second.Valid() {
		t.Errorf("Expected only the run-scoped stability rule without trace figures, got %+v", v)
	}

	r.Trace = &model.TraceFigures{JitterMs: 12}
	if v := a.Evaluate(r); len(v) != 2 {
		t.Errorf("Expected the trace rule to fire once trace figures exist, got %+v", v)
	}
}

func TestNewAlerter_RejectsUnknownRules(t *testing.T) {
	if _, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "bad", Metric: "total_flows", Operator: ">", Threshold: 1},
	}}, nil); err == nil {
		t.Error("Expected an error for an unknown metric")
	}
	if _, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "bad", Metric: "total_packets", Operator: "!=", Threshold: 1},
	}}, nil); err == nil {
		t.Error("Expected an error for an unknown operator")
	}
	if _, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "bad", Scope: config.ScopeWindow, Metric: "avg_jitter_ms", Operator: ">", Threshold: 1},
	}}, nil); err == nil {
		t.Error("Expected an error for a run metric in a window rule")
	}
	if _, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "bad", Scope: "flow", Metric: "packets", Operator: ">", Threshold: 1},
	}}, nil); err == nil {
		t.Error("Expected an error for an unknown scope")
	}
}

func TestCheck_Notifies(t *testing.T) {
	notifier := &recordingNotifier{}
	a, err := NewAlerter(&config.AlerterConfig{Rules: []config.AlerterRule{
		{Name: "retransmitting", Metric: "total_retransmissions", Operator: ">=", Threshold: 10},
	}}, notifier)
	if err != nil {
		t.Fatalf("NewAlerter failed: %v", err)
	}

	if v := a.Check(report()); len(v) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(v))
	}
	if notifier.calls != 1 || !strings.Contains(notifier.subject, "1 Triggered") {
		t.Errorf("Unexpected notification %q (%d calls)", notifier.subject, notifier.calls)
	}
	if !strings.Contains(notifier.body, "<table>") || !strings.Contains(notifier.body, "retransmitting") {
		t.Errorf("Expected an HTML table in the body, got %q", notifier.body)
	}

	quiet := report()
	quiet.Summary.TotalRetransmissions = model.Some(0)
	if v := a.Check(quiet); v != nil || notifier.calls != 1 {
		t.Error("No notification expected without violations")
	}

	notifier.err = errors.New("smtp down")
	if v := a.Check(report()); len(v) != 1 {
		t.Error("A failing notifier must not hide violations")
	}
}

func TestFromConfig(t *testing.T) {
	a, err := FromConfig(&config.Config{})
	if err != nil || a != nil {
		t.Errorf("Expected no alerter when disabled, got %v, %v", a, err)
	}

	a, err = FromConfig(&config.Config{Alerter: config.AlerterConfig{
		Enabled: true,
		Rules:   []config.AlerterRule{{Name: "r", Metric: "rtt_ms", Operator: ">", Threshold: 100}},
	}})
	if err != nil || a == nil {
		t.Fatalf("Expected an alerter, got %v, %v", a, err)
	}
	if a.notifier != nil {
		t.Error("Expected no notifier without an SMTP host")
	}
}
