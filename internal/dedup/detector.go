package dedup

import (
	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is tuned so that two outlets covering the identical
// event with different headline phrasing still collapse, while two
// different stories about the same company do not.
const DefaultThreshold = 0.92

// History is the view of previously posted stories the detector
// compares against.
type History struct {
	Fingerprints map[string]struct{}
	TitleKeys    []string
}

// Detector decides novelty with a cheap exact stage followed by an
// approximate one. Exact fingerprinting alone misses syndicated stories
// reworded by different outlets; similarity alone is too expensive and
// noisy without the exact pre-filter.
type Detector struct {
	threshold float64
}

// New returns a detector with the given similarity threshold. Values
// outside (0, 1] fall back to DefaultThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Threshold reports the configured similarity threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// IsDuplicate reports whether a title with the given fingerprint and
// comparison key matches the history. The boundary is closed on the
// duplicate side: a ratio exactly at the threshold is a duplicate.
func (d *Detector) IsDuplicate(fingerprint, titleKey string, history History) bool {
	if _, ok := history.Fingerprints[fingerprint]; ok {
		return true
	}
	for _, known := range history.TitleKeys {
		if Ratio(titleKey, known) >= d.threshold {
			return true
		}
	}
	return false
}

// Ratio is a normalized edit-distance similarity in [0, 1]. It is
// symmetric; two empty strings are identical.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	max := la
	if lb > max {
		max = lb
	}
	if max == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max)
}
