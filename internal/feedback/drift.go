package feedback

import (
	"context"
	"math"
	"time"
)

// DriftThreshold is the total variation distance above which the sentiment
// distribution is considered to have drifted.
const DriftThreshold = 0.25

// SentimentDrift compares sentiment labels produced in the current window
// against the preceding baseline window of the same length. It returns the
// total variation distance between the two label distributions.
func (s *Store) SentimentDrift(ctx context.Context, window time.Duration) (*DriftReport, error) {
	now := time.Now().UTC()
	current, err := s.sentimentCounts(ctx, now.Add(-window), now)
	if err != nil {
		return nil, err
	}
	baseline, err := s.sentimentCounts(ctx, now.Add(-2*window), now.Add(-window))
	if err != nil {
		return nil, err
	}
	return compareDistributions(baseline, current), nil
}

// compareDistributions computes the total variation distance between two
// label count maps. Empty distributions never report drift; there is
// nothing to compare against.
func compareDistributions(baseline, current map[string]int) *DriftReport {
	report := &DriftReport{Baseline: baseline, Current: current}

	baseTotal := total(baseline)
	curTotal := total(current)
	if baseTotal == 0 || curTotal == 0 {
		return report
	}

	labels := map[string]struct{}{}
	for l := range baseline {
		labels[l] = struct{}{}
	}
	for l := range current {
		labels[l] = struct{}{}
	}

	var distance float64
	for l := range labels {
		p := float64(baseline[l]) / float64(baseTotal)
		q := float64(current[l]) / float64(curTotal)
		distance += math.Abs(p - q)
	}
	report.Distance = distance / 2
	report.DriftDetected = report.Distance > DriftThreshold
	return report
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
