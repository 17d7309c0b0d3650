// Package admit decides which similarity hits may link two members into
// the same cluster.
//
// Reciprocal-best pairs bypass this package entirely; it only judges
// one-directional candidate hits. A candidate is admitted when any of the
// following holds, checked in order:
//
//  1. it is the best-ranked hit for its query (rank 1), in every mode;
//  2. the unconditional mode is on (AllHits);
//  3. its blast score ratio clears the threshold, unless BestOnly
//     suppresses ratio admission.
//
// The score ratio divides the hit score by the larger of the two
// endpoints' self-hit scores. Endpoints without a recorded self-hit are
// counted and skipped rather than treated as errors; when neither
// endpoint has one the candidate is rejected.
package admit

import (
	"fmt"

	"github.com/grisedale/linkclust/internal/partition"
)

// DefaultBSRThreshold is the score-ratio cutoff used when a policy does
// not set one.
const DefaultBSRThreshold = 0.25

// Pair is a one-directional similarity hit under consideration.
type Pair struct {
	Query   partition.Member
	Subject partition.Member
	Score   float64
	Rank    int
}

// ScoreTable maps a member to its self-hit score.
type ScoreTable map[partition.Member]float64

// Policy selects the admission mode. AllHits and BestOnly are mutually
// exclusive; callers validate that before clustering starts.
type Policy struct {
	AllHits      bool
	BestOnly     bool
	BSRThreshold float64
}

func (p Policy) String() string {
	switch {
	case p.AllHits:
		return "all-hits"
	case p.BestOnly:
		return "best-only"
	default:
		return fmt.Sprintf("bsr>%g", p.threshold())
	}
}

func (p Policy) threshold() float64 {
	if p.BSRThreshold > 0 {
		return p.BSRThreshold
	}
	return DefaultBSRThreshold
}

// Stats counts admission outcomes for one clustering pass. Callers keep
// one per group pair and aggregate with Add.
type Stats struct {
	BestRank    int `json:"best_rank"`
	AllHits     int `json:"all_hits"`
	ScoreRatio  int `json:"score_ratio"`
	Rejected    int `json:"rejected"`
	SelfPairs   int `json:"self_pairs"`
	MissingSelf int `json:"missing_self"`
}

// Admitted returns the number of candidates that passed under any rule.
func (s *Stats) Admitted() int {
	return s.BestRank + s.AllHits + s.ScoreRatio
}

// Add folds o into s.
func (s *Stats) Add(o Stats) {
	s.BestRank += o.BestRank
	s.AllHits += o.AllHits
	s.ScoreRatio += o.ScoreRatio
	s.Rejected += o.Rejected
	s.SelfPairs += o.SelfPairs
	s.MissingSelf += o.MissingSelf
}

// Admit reports whether c may link its two endpoints, recording the
// outcome in st.
func (p Policy) Admit(c Pair, scores ScoreTable, st *Stats) bool {
	if c.Query == c.Subject {
		st.SelfPairs++
		return false
	}
	if c.Rank == 1 {
		st.BestRank++
		return true
	}
	if p.AllHits {
		st.AllHits++
		return true
	}
	if p.BestOnly {
		st.Rejected++
		return false
	}

	ref, ok := 0.0, false
	if s, present := scores[c.Query]; present {
		ref, ok = s, true
	} else {
		st.MissingSelf++
	}
	if s, present := scores[c.Subject]; present {
		if !ok || s > ref {
			ref = s
		}
		ok = true
	} else {
		st.MissingSelf++
	}
	if !ok {
		st.Rejected++
		return false
	}

	if c.Score/ref > p.threshold() {
		st.ScoreRatio++
		return true
	}
	st.Rejected++
	return false
}
