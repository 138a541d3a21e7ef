package ephemeris

import (
	"math"
	"sort"

	"github.com/bramburn/gpssimgo/pkg/gpssim/gtime"
)

// Set maps PRN to the broadcast records available for it, kept sorted by TOE
type Set struct {
	recs map[int][]*Record
}

// NewSet builds a Set from parsed records, discarding out-of-range PRNs
func NewSet(records []Record) *Set {
	s := &Set{recs: make(map[int][]*Record)}
	for i := range records {
		r := &records[i]
		if r.PRN < 1 || r.PRN > 32 {
			continue
		}
		s.recs[r.PRN] = append(s.recs[r.PRN], r)
	}
	for prn := range s.recs {
		rs := s.recs[prn]
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Toe.Before(rs[j].Toe)
		})
	}
	return s
}

// PRNs returns the satellites with at least one record, in ascending order
func (s *Set) PRNs() []int {
	prns := make([]int, 0, len(s.recs))
	for prn := range s.recs {
		prns = append(prns, prn)
	}
	sort.Ints(prns)
	return prns
}

// Len returns the total number of records in the set
func (s *Set) Len() int {
	n := 0
	for _, rs := range s.recs {
		n += len(rs)
	}
	return n
}

// Select returns the usable record for prn whose TOE is nearest to t within
// the ±2 h validity window, or nil when the satellite is unavailable.
// When two records tie on TOE distance the one with the later IODC wins.
func (s *Set) Select(prn int, t gtime.GPSTime) *Record {
	var best *Record
	bestDt := math.Inf(1)
	for _, r := range s.recs[prn] {
		if r.Health != 0 {
			continue
		}
		dt := math.Abs(t.Sub(r.Toe))
		if dt > MaxToeAge {
			continue
		}
		if dt < bestDt || (dt == bestDt && best != nil && r.IODC > best.IODC) {
			best = r
			bestDt = dt
		}
	}
	return best
}

// OverrideEpochs rewrites the TOC and TOE of every record to t, keeping
// otherwise stale ephemerides usable for an arbitrary scenario start.
func (s *Set) OverrideEpochs(t gtime.GPSTime) {
	for _, rs := range s.recs {
		for _, r := range rs {
			r.Toc = t
			r.Toe = t
		}
	}
}
