package resolution

import (
	"math/rand"
	"strings"

	"github.com/framevault/dedupe-engine/pkg/models"
)

// PairSelectorAndComparator holds an ordered list of comparators. Given two
// media with no known ordering, it tests the whole list both ways around; if
// exactly one orientation passes everything, that orientation's first file is
// the confirmed better one.
type PairSelectorAndComparator struct {
	Comparators []PairComparator
}

// GetMatchingMedia returns the winner of the pair, or nil for no match.
//
// The pair is shuffled first: when both orientations would pass, the pick is
// fair rather than biased by input order.
func (s *PairSelectorAndComparator) GetMatchingMedia(media1, media2 *models.MediaResult) *models.MediaResult {
	if rand.Intn(2) == 0 {
		media1, media2 = media2, media1
	}

	if s.testOrientation(media1, media2) {
		return media1
	}
	if s.testOrientation(media2, media1) {
		return media2
	}
	return nil
}

func (s *PairSelectorAndComparator) testOrientation(better, worse *models.MediaResult) bool {
	for _, comparator := range s.Comparators {
		if !comparator.Test(better, worse) {
			return false
		}
	}
	return true
}

// Summary joins the comparator summaries for UI display.
func (s *PairSelectorAndComparator) Summary() string {
	if len(s.Comparators) == 0 {
		return "no tests; any orientation matches"
	}

	parts := make([]string, 0, len(s.Comparators))
	for _, comparator := range s.Comparators {
		parts = append(parts, comparator.Summary())
	}
	return strings.Join(parts, " & ")
}
