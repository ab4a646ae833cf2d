package model

// Writer defines a generic interface for persisting the result of a run.
type Writer interface {
	// Write persists a finished run.
	Write(report *Report) error

	// Name identifies the writer in logs.
	Name() string
}

// WindowSink receives windows while a live run is still in progress.
type WindowSink interface {
	WriteWindows(runID string, windows []WindowMetrics) error
}
