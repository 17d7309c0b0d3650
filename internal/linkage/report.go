package linkage

import (
	"fmt"
	"strings"

	"github.com/grisedale/linkclust/internal/admit"
)

// PairReport counts edge outcomes for one group pair. A pair naming the
// same group on both sides is the within-group pass.
type PairReport struct {
	GroupA string      `json:"group_a"`
	GroupB string      `json:"group_b"`
	RBH    int         `json:"rbh"`
	Hits   admit.Stats `json:"hits"`
}

func (p PairReport) label() string {
	if p.GroupA == p.GroupB {
		return p.GroupA
	}
	return p.GroupA + "/" + p.GroupB
}

// Report summarizes one clustering pass. The linker returns it instead
// of keeping counters anywhere shared, so passes over different stores
// never bleed into each other.
type Report struct {
	Policy     string       `json:"policy"`
	Groups     []string     `json:"groups"`
	IncludeRBH bool         `json:"include_rbh"`
	Pairs      []PairReport `json:"pairs"`
	RBHTotal   int          `json:"rbh_total"`
	Hits       admit.Stats  `json:"hits"`
	Members    int          `json:"members"`
	Clusters   int          `json:"clusters"`
	Singletons int          `json:"singletons"`
	Saved      int          `json:"clusters_saved"`
}

func (r *Report) addPair(p PairReport) {
	r.Pairs = append(r.Pairs, p)
	r.RBHTotal += p.RBH
	r.Hits.Add(p.Hits)
}

// Format renders the multi-line summary printed after a pass.
func (r *Report) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clustered %d members into %d clusters (%d saved, %d singletons)\n",
		r.Members, r.Clusters, r.Saved, r.Singletons)
	fmt.Fprintf(&b, "  policy %s over %s\n", r.Policy, strings.Join(r.Groups, ", "))
	fmt.Fprintf(&b, "  edges: %d rbh, %d admitted (%d best-rank, %d all-hits, %d ratio), %d rejected\n",
		r.RBHTotal, r.Hits.Admitted(), r.Hits.BestRank, r.Hits.AllHits, r.Hits.ScoreRatio, r.Hits.Rejected)
	if r.Hits.SelfPairs > 0 || r.Hits.MissingSelf > 0 {
		fmt.Fprintf(&b, "  skipped: %d self-pairs, %d missing self-scores\n",
			r.Hits.SelfPairs, r.Hits.MissingSelf)
	}
	if len(r.Pairs) > 1 {
		for _, p := range r.Pairs {
			fmt.Fprintf(&b, "  %s: %d rbh, %d admitted, %d rejected\n",
				p.label(), p.RBH, p.Hits.Admitted(), p.Hits.Rejected)
		}
	}
	return b.String()
}
