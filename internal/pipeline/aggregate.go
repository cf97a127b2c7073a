package pipeline

import (
	"math"
	"sync"

	"go-funnel-metrics/internal/model"
)

// ClassifiedRecord is a record with its status, stage and dwell resolved
type ClassifiedRecord struct {
	Record         model.RawRecord
	Status         model.CanonicalStatus
	Classification Classification
	DwellHours     float64
	DwellKnown     bool
}

// Partition splits classified records into stage and outcome buckets.
// A record lives in exactly one bucket.
type Partition struct {
	Positive map[model.PipelineStage][]ClassifiedRecord
	Negative map[model.NegativeOutcome][]ClassifiedRecord
}

func newPartition() Partition {
	return Partition{
		Positive: make(map[model.PipelineStage][]ClassifiedRecord),
		Negative: make(map[model.NegativeOutcome][]ClassifiedRecord),
	}
}

func (p Partition) add(cr ClassifiedRecord) {
	if cr.Classification.IsNegative() {
		p.Negative[cr.Classification.Outcome] = append(p.Negative[cr.Classification.Outcome], cr)
		return
	}
	p.Positive[cr.Classification.Stage] = append(p.Positive[cr.Classification.Stage], cr)
}

func (p Partition) merge(other Partition) {
	for stage, recs := range other.Positive {
		p.Positive[stage] = append(p.Positive[stage], recs...)
	}
	for outcome, recs := range other.Negative {
		p.Negative[outcome] = append(p.Negative[outcome], recs...)
	}
}

// Records flattens the partition in funnel order: stages first, then
// negative outcomes.
func (p Partition) Records() []ClassifiedRecord {
	out := make([]ClassifiedRecord, 0, p.TotalPositive()+p.TotalNegative())
	for _, stage := range model.Stages() {
		out = append(out, p.Positive[stage]...)
	}
	for _, outcome := range model.NegativeOutcomes() {
		out = append(out, p.Negative[outcome]...)
	}
	return out
}

// TotalPositive counts records inside the funnel
func (p Partition) TotalPositive() int {
	n := 0
	for _, recs := range p.Positive {
		n += len(recs)
	}
	return n
}

// TotalNegative counts records in a negative outcome
func (p Partition) TotalNegative() int {
	n := 0
	for _, recs := range p.Negative {
		n += len(recs)
	}
	return n
}

// FunnelAggregator groups classified records by stage and computes the
// per-stage snapshots.
type FunnelAggregator struct {
	normalizer *StatusNormalizer
	classifier *StageClassifier
	dwell      DwellCalculator
	workers    int
}

// NewFunnelAggregator creates an aggregator classifying with workerCount workers
func NewFunnelAggregator(normalizer *StatusNormalizer, classifier *StageClassifier, dwell DwellCalculator, workerCount int) *FunnelAggregator {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &FunnelAggregator{
		normalizer: normalizer,
		classifier: classifier,
		dwell:      dwell,
		workers:    workerCount,
	}
}

// ClassifyRecord normalizes, classifies and measures one record
func (a *FunnelAggregator) ClassifyRecord(rec model.RawRecord) ClassifiedRecord {
	status := a.normalizer.Normalize(rec.Status, model.DomainServiceRecord)
	hours, known := a.dwell.HoursSince(ReferenceTime(rec))
	return ClassifiedRecord{
		Record:         rec,
		Status:         status,
		Classification: a.classifier.Classify(rec, status),
		DwellHours:     hours,
		DwellKnown:     known,
	}
}

// Partition classifies all records. Records are split into contiguous chunks,
// one per worker, and the worker partitions are merged in chunk order so the
// result does not depend on scheduling.
func (a *FunnelAggregator) Partition(records []model.RawRecord) Partition {
	workerCount := a.workers
	if workerCount > len(records) {
		workerCount = len(records)
	}
	if workerCount <= 1 {
		p := newPartition()
		for _, rec := range records {
			p.add(a.ClassifyRecord(rec))
		}
		return p
	}

	chunk := (len(records) + workerCount - 1) / workerCount
	parts := make([]Partition, workerCount)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		start := i * chunk
		end := start + chunk
		if end > len(records) {
			end = len(records)
		}
		go func(workerID int, batch []model.RawRecord) {
			defer wg.Done()
			p := newPartition()
			for _, rec := range batch {
				p.add(a.ClassifyRecord(rec))
			}
			parts[workerID] = p
		}(i, records[start:end])
	}
	wg.Wait()

	final := newPartition()
	for _, p := range parts {
		final.merge(p)
	}
	return final
}

// Aggregate builds the funnel report for a set of records
func (a *FunnelAggregator) Aggregate(records []model.RawRecord) model.FunnelReport {
	return BuildFunnel(a.Partition(records))
}

// BuildFunnel computes stage snapshots and the negative breakdown from a
// partition. Every stage is emitted, even when empty.
func BuildFunnel(p Partition) model.FunnelReport {
	stages := model.Stages()
	snapshots := make([]model.StageSnapshot, 0, len(stages))
	averages := make([]float64, 0, len(stages))

	prevCount := 0
	for i, stage := range stages {
		bucket := p.Positive[stage]
		count := len(bucket)

		sum, known := 0.0, 0
		for _, cr := range bucket {
			if cr.DwellKnown {
				sum += cr.DwellHours
				known++
			}
		}
		avg := 0.0
		if known > 0 {
			avg = round1(sum / float64(known))
		}
		averages = append(averages, avg)

		snap := model.StageSnapshot{
			ID:                stage,
			Label:             stage.Label(),
			Count:             count,
			AverageDwellHours: avg,
			DwellSampleSize:   known,
			Available:         true,
		}
		if i > 0 {
			snap.ConversionFromPrevious = percentage(count, prevCount)
			if prevCount > 0 {
				drop := prevCount - count
				if drop < 0 {
					drop = 0
				}
				snap.DropOffCount = &drop
			}
		}
		snapshots = append(snapshots, snap)
		prevCount = count
	}

	for i := range snapshots {
		snapshots[i].CumulativeDwellHours = round1(CumulativeDwell(i, averages))
	}

	totalPositive := p.TotalPositive()
	totalNegative := p.TotalNegative()
	total := totalPositive + totalNegative

	breakdown := make([]model.NegativeBreakdown, 0, len(model.NegativeOutcomes()))
	for _, outcome := range model.NegativeOutcomes() {
		count := len(p.Negative[outcome])
		breakdown = append(breakdown, model.NegativeBreakdown{
			Category:          outcome,
			Count:             count,
			PercentageOfTotal: percentage(count, total),
		})
	}

	return model.FunnelReport{
		Stages:                snapshots,
		NegativeBreakdown:     breakdown,
		OverallConversionRate: percentage(snapshots[len(snapshots)-1].Count, snapshots[0].Count),
		TotalPositive:         totalPositive,
		TotalNegative:         totalNegative,
	}
}

// UnavailableFunnel returns the complete stage shape marked unavailable
func UnavailableFunnel(reason string) model.FunnelReport {
	stages := model.Stages()
	snapshots := make([]model.StageSnapshot, 0, len(stages))
	for _, stage := range stages {
		snapshots = append(snapshots, model.StageSnapshot{
			ID:            stage,
			Label:         stage.Label(),
			Available:     false,
			MissingReason: reason,
		})
	}
	breakdown := make([]model.NegativeBreakdown, 0, len(model.NegativeOutcomes()))
	for _, outcome := range model.NegativeOutcomes() {
		breakdown = append(breakdown, model.NegativeBreakdown{Category: outcome})
	}
	return model.FunnelReport{Stages: snapshots, NegativeBreakdown: breakdown}
}

// StageConversion compares any two stages of a report: count(to) / count(from).
// It returns nil when either stage is missing or from is empty.
func StageConversion(report model.FunnelReport, from, to model.PipelineStage) *float64 {
	f, ok := report.Stage(from)
	if !ok {
		return nil
	}
	t, ok := report.Stage(to)
	if !ok {
		return nil
	}
	return percentage(t.Count, f.Count)
}

// percentage returns part/whole*100 rounded to one decimal and clamped to
// [0, 100], or nil when whole is zero.
func percentage(part, whole int) *float64 {
	if whole <= 0 {
		return nil
	}
	v := float64(part) / float64(whole) * 100
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	v = round1(v)
	return &v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
