package factory

import (
	"errors"
	"strings"
	"testing"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
)

type stubWriter struct {
	name    string
	err     error
	written int
}

func (w *stubWriter) Write(*model.Report) error {
	w.written++
	return w.err
}

func (w *stubWriter) Name() string { return w.name }

type stubSink struct{ stubWriter }

func (s *stubSink) WriteWindows(string, []model.WindowMetrics) error { return nil }

func TestCreate(t *testing.T) {
	RegisterWriter("stub-create", func(def config.WriterDef) (model.Writer, error) {
		return &stubWriter{name: def.Type}, nil
	})
	RegisterWriter("stub-broken", func(config.WriterDef) (model.Writer, error) {
		return nil, errors.New("boom")
	})

	cfg := &config.Config{Writers: []config.WriterDef{
		{Type: "stub-create", Enabled: true},
		{Type: "stub-broken", Enabled: false},
	}}
	writers, err := Create(cfg)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(writers) != 1 || writers[0].Name() != "stub-create" {
		t.Fatalf("Expected only the enabled writer, got %v", writers)
	}

	cfg.Writers[1].Enabled = true
	if _, err := Create(cfg); err == nil {
		t.Error("Expected an error from a failing factory")
	}

	cfg.Writers = []config.WriterDef{{Type: "missing", Enabled: true}}
	_, err = Create(cfg)
	if err == nil {
		t.Fatal("Expected an error for an unknown writer type")
	}
	if !strings.Contains(err.Error(), "stub-broken, stub-create") {
		t.Errorf("Expected the registered writer types in the error, got %q", err)
	}
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	RegisterWriter("stub-dup", func(config.WriterDef) (model.Writer, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("Expected a panic on duplicate registration")
		}
	}()
	RegisterWriter("stub-dup", func(config.WriterDef) (model.Writer, error) { return nil, nil })
}

func TestWriteAll_ContinuesAfterFailure(t *testing.T) {
	bad := &stubWriter{name: "bad", err: errors.New("disk full")}
	good := &stubWriter{name: "good"}

	if failed := WriteAll([]model.Writer{bad, good}, &model.Report{}); failed != 1 {
		t.Errorf("Expected 1 failure, got %d", failed)
	}
	if good.written != 1 {
		t.Error("A failing writer must not stop the others")
	}
}

func TestWindowSinks(t *testing.T) {
	sinks := WindowSinks([]model.Writer{&stubWriter{name: "plain"}, &stubSink{stubWriter{name: "sink"}}})
	if len(sinks) != 1 {
		t.Errorf("Expected 1 window sink, got %d", len(sinks))
	}
}
