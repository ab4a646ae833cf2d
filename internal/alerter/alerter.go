package alerter

import (
	"fmt"
	"log"
	"strings"

	"github.com/gomarkdown/markdown"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
	"TransportBench/internal/notification"
)

// Violation is a rule triggered by a run. Second is the index of the
// offending window for window-scoped rules and absent otherwise.
type Violation struct {
	Rule   config.AlerterRule
	Value  float64
	Second model.Optional[int]
}

// Alerter evaluates finished runs against threshold rules and sends a
// notification when any rule is violated.
type Alerter struct {
	rules    []config.AlerterRule
	notifier model.Notifier
}

// NewAlerter creates a new Alerter instance. notifier may be nil, in which
// case violations are only logged.
func NewAlerter(cfg *config.AlerterConfig, notifier model.Notifier) (*Alerter, error) {
	for _, rule := range cfg.Rules {
		known := runMetrics
		switch scopeOf(rule) {
		case config.ScopeRun:
		case config.ScopeWindow:
			known = windowMetrics
		default:
			return nil, fmt.Errorf("alerter rule '%s': unknown scope '%s'", rule.Name, rule.Scope)
		}
		if !isKnown(known, rule.Metric) {
			return nil, fmt.Errorf("alerter rule '%s': unknown %s metric '%s'", rule.Name, scopeOf(rule), rule.Metric)
		}
		if !isKnownOperator(rule.Operator) {
			return nil, fmt.Errorf("alerter rule '%s': unknown operator '%s'", rule.Name, rule.Operator)
		}
	}
	return &Alerter{rules: cfg.Rules, notifier: notifier}, nil
}

var runMetrics = []string{
	"duration_seconds", "total_packets", "total_bytes", "avg_bandwidth_mbps",
	"avg_jitter_ms", "total_retransmissions", "avg_loss_percent", "rtt_ms",
	"bandwidth_stddev_mbps", "bandwidth_cv_percent",
	"trace_bandwidth_mbps", "trace_jitter_ms", "trace_loss_percent",
}

var windowMetrics = []string{
	"packets", "bytes", "bandwidth_mbps", "jitter_ms", "retransmissions", "loss_percent",
}

func scopeOf(rule config.AlerterRule) string {
	if rule.Scope == "" {
		return config.ScopeRun
	}
	return rule.Scope
}

func isKnown(known []string, metric string) bool {
	for _, m := range known {
		if m == metric {
			return true
		}
	}
	return false
}

func isKnownOperator(op string) bool {
	switch op {
	case ">", "<", "=", ">=", "<=":
		return true
	}
	return false
}

// metricValue returns the value of a summary metric, or false when the
// metric does not apply to the run.
func metricValue(metric string, r *model.Report) (float64, bool) {
	s := r.Summary
	switch metric {
	case "duration_seconds":
		return float64(r.TotalDurationSeconds), true
	case "total_packets":
		return float64(s.TotalPackets), true
	case "total_bytes":
		return float64(s.TotalBytes), true
	case "avg_bandwidth_mbps":
		return s.AvgBandwidthMbps, true
	case "avg_jitter_ms":
		return s.AvgJitterMs, true
	case "total_retransmissions":
		v, ok := s.TotalRetransmissions.Get()
		return float64(v), ok
	case "avg_loss_percent":
		return s.AvgLossPercent.Get()
	case "rtt_ms":
		return s.RTTMs.Get()
	case "bandwidth_stddev_mbps":
		return s.Stability.StdDevMbps, true
	case "bandwidth_cv_percent":
		return s.Stability.CVPercent, true
	}
	if t := r.Trace; t != nil {
		switch metric {
		case "trace_bandwidth_mbps":
			return t.BandwidthMbps, true
		case "trace_jitter_ms":
			return t.JitterMs, true
		case "trace_loss_percent":
			return t.LossPercent.Get()
		}
	}
	return 0, false
}

// windowValue returns the value of a window metric, or false when the
// metric does not apply to the window.
func windowValue(metric string, w model.WindowMetrics) (float64, bool) {
	switch metric {
	case "packets":
		return float64(w.Packets), true
	case "bytes":
		return float64(w.Bytes), true
	case "bandwidth_mbps":
		return w.BandwidthMbps, true
	case "jitter_ms":
		return w.JitterMs, true
	case "retransmissions":
		v, ok := w.Retransmissions.Get()
		return float64(v), ok
	case "loss_percent":
		return w.LossPercent.Get()
	}
	return 0, false
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		log.Printf("Warning: unknown operator '%s' in alerter rule", operator)
		return false
	}
}

// Evaluate returns the rules violated by the run. A window-scoped rule
// yields one violation per offending window; windows without packets are
// not evaluated. Rules on a metric that does not apply are skipped.
func (a *Alerter) Evaluate(report *model.Report) []Violation {
	var violations []Violation
	for _, rule := range a.rules {
		if rule.Scope == config.ScopeWindow {
			violations = append(violations, evaluateWindows(rule, report.Windows)...)
			continue
		}
		value, ok := metricValue(rule.Metric, report)
		if !ok {
			continue
		}
		if check(value, rule.Threshold, rule.Operator) {
			violations = append(violations, Violation{Rule: rule, Value: value})
		}
	}
	return violations
}

func evaluateWindows(rule config.AlerterRule, windows []model.WindowMetrics) []Violation {
	var violations []Violation
	for _, w := range windows {
		if w.Packets == 0 {
			continue
		}
		value, ok := windowValue(rule.Metric, w)
		if ok && check(value, rule.Threshold, rule.Operator) {
			violations = append(violations, Violation{Rule: rule, Value: value, Second: model.Some(w.Index)})
		}
	}
	return violations
}

// Render formats the violations of a run as an HTML message body.
func Render(report *model.Report, violations []Violation) string {
	var md strings.Builder
	fmt.Fprintf(&md, "# TransportBench Alert Summary\n\n")
	fmt.Fprintf(&md, "Run `%s` (%s", report.RunID, report.Protocol)
	if report.Label != "" {
		fmt.Fprintf(&md, ", %s", report.Label)
	}
	fmt.Fprintf(&md, ") triggered %d alert(s).\n\n", len(violations))
	md.WriteString("| Rule | Second | Metric | Condition | Observed |\n")
	md.WriteString("|---|---|---|---|---|\n")
	for _, v := range violations {
		second := "run"
		if n, ok := v.Second.Get(); ok {
			second = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(&md, "| %s | %s | `%s` | `%s %.2f` | %.2f |\n",
			v.Rule.Name, second, v.Rule.Metric, v.Rule.Operator, v.Rule.Threshold, v.Value)
	}
	return string(markdown.ToHTML([]byte(md.String()), nil, nil))
}

// Check evaluates the run and notifies about any violations. It returns the
// violations found.
func (a *Alerter) Check(report *model.Report) []Violation {
	violations := a.Evaluate(report)
	if len(violations) == 0 {
		return nil
	}
	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(violations))

	if a.notifier != nil {
		subject := fmt.Sprintf("TransportBench Alert Summary (%d Triggered)", len(violations))
		if err := a.notifier.Send(subject, Render(report, violations)); err != nil {
			log.Printf("ERROR: Failed to send alert notification: %v", err)
		} else {
			log.Printf("INFO: Alert notification sent successfully.")
		}
	}
	return violations
}

// FromConfig builds the alerter of the application config. It returns nil
// when alerting is disabled. Notifications are e-mailed when an SMTP host
// is configured.
func FromConfig(cfg *config.Config) (*Alerter, error) {
	if !cfg.Alerter.Enabled {
		return nil, nil
	}
	var notifier model.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notification.NewEmailNotifier(cfg.SMTP)
	} else {
		log.Println("Alerter: no SMTP host configured, alerts will only be logged.")
	}
	return NewAlerter(&cfg.Alerter, notifier)
}
