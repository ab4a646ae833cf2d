package summary

import (
	"time"

	"TransportBench/internal/model"
)

// RunInfo identifies a run and bounds it in time.
type RunInfo struct {
	RunID             string
	Label             string
	Protocol          model.Protocol
	CongestionControl string
	StartTime         time.Time
	EndTime           time.Time
}

// NewReport assembles the report of a finished run from its windows.
func NewReport(info RunInfo, windows []model.WindowMetrics) *model.Report {
	return &model.Report{
		RunID:                info.RunID,
		Label:                info.Label,
		Protocol:             info.Protocol,
		CongestionControl:    info.CongestionControl,
		StartTime:            info.StartTime,
		EndTime:              info.EndTime,
		TotalDurationSeconds: DurationSeconds(windows),
		Windows:              windows,
		Summary:              Reduce(windows),
	}
}
