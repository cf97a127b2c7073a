package pipeline

import (
	"sort"

	"go-funnel-metrics/internal/model"
)

// DefaultBottleneckHours replaces a negative threshold
const DefaultBottleneckHours = 48.0

// DetectBottlenecks returns the stages whose average dwell exceeds
// thresholdHours while holding at least one record, worst first. Ties keep
// funnel order. Unavailable stages are never reported. A zero threshold
// reports every occupied stage with positive dwell.
func DetectBottlenecks(report model.FunnelReport, thresholdHours float64) []model.Bottleneck {
	if thresholdHours < 0 {
		thresholdHours = DefaultBottleneckHours
	}

	out := make([]model.Bottleneck, 0)
	for _, s := range report.Stages {
		if !s.Available || s.Count == 0 {
			continue
		}
		if s.AverageDwellHours > thresholdHours {
			out = append(out, model.Bottleneck{
				StageID:           s.ID,
				Label:             s.Label,
				Count:             s.Count,
				AverageDwellHours: s.AverageDwellHours,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageDwellHours > out[j].AverageDwellHours
	})
	return out
}
