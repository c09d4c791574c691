// ABOUTME: Generic threshold-correlation routine shared by the per-signal analyzers.
// ABOUTME: A Rule is configuration; Evaluate does the join, the count and the significance check.
package analysis

import (
	"github.com/harperreed/migraine/internal/models"
)

// Classifier evaluates one record against the thresholds.
type Classifier[T any] func(rec T, th Thresholds) (match, applicable bool)

// Rule describes one threshold correlation.
type Rule[T any] struct {
	Type      FindingType
	Offset    int
	Classify  Classifier[T]
	MinPct    func(th Thresholds) int
	Title     string
	Condition func(th Thresholds) string
	Describe  func(pct int, th Thresholds) string
}

// Measure joins every episode and counts usable and matching ones.
func Measure[T any](episodes []*models.Episode, table map[string]T, offset int, classify Classifier[T], th Thresholds) Sample {
	var s Sample
	for _, e := range episodes {
		rec, ok := Join(e, table, offset)
		if !ok {
			s.Missing++
			continue
		}
		match, applicable := classify(rec, th)
		if !applicable {
			s.NotApplicable++
			continue
		}
		s.Usable++
		if match {
			s.Matched++
		}
	}
	return s
}

// Evaluate runs the rule and returns a finding, or nil when the sample is
// too small or the percentage is under the rule's significance.
func (r Rule[T]) Evaluate(episodes []*models.Episode, table map[string]T, th Thresholds) (*Finding, Sample) {
	s := Measure(episodes, table, r.Offset, r.Classify, th)
	if s.Usable < th.MinSampleSize {
		return nil, s
	}
	// Compare the exact ratio; the rounded percentage would let 49.5% pass 50.
	if s.Matched*100 < r.MinPct(th)*s.Usable {
		return nil, s
	}
	pct := s.Percentage()

	f := &Finding{
		Type:        r.Type,
		Title:       r.Title,
		Description: r.Describe(pct, th),
		Percentage:  pct,
		SampleSize:  s.Usable,
		Excluded:    s.Excluded(),
	}
	if r.Condition != nil {
		f.Condition = r.Condition(th)
	}
	withBaseline(f, s, table, func(rec T) (bool, bool) { return r.Classify(rec, th) })
	return f, s
}

// withBaseline attaches how often the condition holds on any day with data
// and the probability of seeing at least this many matches by chance.
func withBaseline[T any](f *Finding, s Sample, table map[string]T, classify func(T) (bool, bool)) {
	var days, hits int
	for _, rec := range table {
		match, applicable := classify(rec)
		if !applicable {
			continue
		}
		days++
		if match {
			hits++
		}
	}
	if days == 0 {
		return
	}
	baseline := percent(hits, days)
	p := binomialPValue(s.Matched, s.Usable, float64(hits)/float64(days))
	f.Baseline = &baseline
	f.PValue = &p
}
