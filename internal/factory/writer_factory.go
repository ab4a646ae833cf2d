package factory

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"TransportBench/internal/config"
	"TransportBench/internal/metrics"
	"TransportBench/internal/model"
)

// WriterFactory creates a writer from its configuration.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the registered writer types, sorted.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create creates the enabled writers of the provided config.
func Create(cfg *config.Config) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		log.Printf("Creating writer of type: '%s'\n", def.Type)

		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s' (registered: %s)", def.Type, strings.Join(Registered(), ", "))
		}

		w, err := factory(def)
		if err != nil {
			return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
		}
		writers = append(writers, w)
	}

	return writers, nil
}

// WindowSinks returns the writers that also accept windows of a run in
// progress.
func WindowSinks(writers []model.Writer) []model.WindowSink {
	var sinks []model.WindowSink
	for _, w := range writers {
		if s, ok := w.(model.WindowSink); ok {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// WriteAll hands the report to every writer. A failing writer is logged and
// does not stop the others; the number of failures is returned.
func WriteAll(writers []model.Writer, report *model.Report) int {
	failed := 0
	for _, w := range writers {
		if err := w.Write(report); err != nil {
			metrics.WriterErrorsTotal.WithLabelValues(w.Name()).Inc()
			log.Printf("Writer '%s' failed: %v", w.Name(), err)
			failed++
			continue
		}
		log.Printf("Writer '%s' finished.", w.Name())
	}
	return failed
}
