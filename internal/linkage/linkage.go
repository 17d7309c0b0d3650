// Package linkage drives single-linkage clustering over pairwise
// similarity edges.
//
// A pass walks every unordered pair of source groups (a group paired
// with itself covers within-group hits). Reciprocal-best pairs link
// their endpoints unconditionally; candidate hits go through the
// admission policy first. The final partition does not depend on the
// order edges arrive in, so the phase split per pair is a streaming
// convenience, not a semantic one.
package linkage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grisedale/linkclust/internal/admit"
	"github.com/grisedale/linkclust/internal/partition"
)

// EdgeSource supplies the edges of one clustering pass. Implementations
// stream rows through the callbacks and stop on the first callback
// error.
type EdgeSource interface {
	// SelfScores yields the self-hit score of every member of the named
	// groups that has one recorded.
	SelfScores(ctx context.Context, groups []string, fn func(m partition.Member, score float64) error) error

	// RBHPairs yields reciprocal-best pairs between two distinct
	// groups. Reciprocity is the supplier's responsibility.
	RBHPairs(ctx context.Context, groupA, groupB string, fn func(a, b partition.Member) error) error

	// CandidatePairs yields ranked non-self hits between members of the
	// named groups. When more than one group is named, within-group
	// hits are excluded; a single-group call yields exactly those.
	CandidatePairs(ctx context.Context, groups []string, fn func(admit.Pair) error) error
}

// ClusterSink persists one emitted cluster at a time.
type ClusterSink interface {
	SaveCluster(ctx context.Context, id int64, members []partition.Member) error
}

// WorkQueue receives the identifier of each persisted cluster for
// downstream per-cluster analysis.
type WorkQueue interface {
	Enqueue(ctx context.Context, clusterID int64) error
}

// Config selects what a pass clusters and how.
type Config struct {
	Groups     []string
	Policy     admit.Policy
	IncludeRBH bool
}

// Runner executes clustering passes against one edge source.
type Runner struct {
	src EdgeSource
	log *zap.Logger
}

// NewRunner wires a runner to its edge source. A nil logger disables
// logging.
func NewRunner(src EdgeSource, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{src: src, log: log}
}

// Cluster consumes every edge for cfg.Groups and returns the final
// partition alongside the pass report. Nothing is persisted.
func (r *Runner) Cluster(ctx context.Context, cfg Config) (*partition.Registry, *Report, error) {
	if len(cfg.Groups) == 0 {
		return nil, nil, ErrNoGroups
	}

	rep := &Report{
		Policy:     cfg.Policy.String(),
		Groups:     cfg.Groups,
		IncludeRBH: cfg.IncludeRBH,
	}
	r.log.Info("clustering pass starting",
		zap.Strings("groups", cfg.Groups),
		zap.String("policy", rep.Policy),
		zap.Bool("rbh", cfg.IncludeRBH))

	// Only ratio admission consults self-scores; the other modes skip
	// the load.
	scores := admit.ScoreTable{}
	if !cfg.Policy.AllHits && !cfg.Policy.BestOnly {
		err := r.src.SelfScores(ctx, cfg.Groups, func(m partition.Member, score float64) error {
			scores[m] = score
			return nil
		})
		if err != nil {
			return nil, nil, phaseErr(PhaseSelfScores, "", "", err)
		}
		r.log.Debug("self-scores loaded", zap.Int("members", len(scores)))
	}

	reg := partition.NewRegistry()
	for i, a := range cfg.Groups {
		for _, b := range cfg.Groups[i:] {
			pair := PairReport{GroupA: a, GroupB: b}

			if cfg.IncludeRBH && a != b {
				err := r.src.RBHPairs(ctx, a, b, func(x, y partition.Member) error {
					reg.Union(x, y)
					pair.RBH++
					return nil
				})
				if err != nil {
					return nil, nil, phaseErr(PhaseRBH, a, b, err)
				}
			}

			pairGroups := []string{a}
			if a != b {
				pairGroups = []string{a, b}
			}
			err := r.src.CandidatePairs(ctx, pairGroups, func(c admit.Pair) error {
				if cfg.Policy.Admit(c, scores, &pair.Hits) {
					reg.Union(c.Query, c.Subject)
				}
				return nil
			})
			if err != nil {
				return nil, nil, phaseErr(PhaseCandidates, a, b, err)
			}

			r.log.Debug("group pair done",
				zap.String("pair", pair.label()),
				zap.Int("rbh", pair.RBH),
				zap.Int("admitted", pair.Hits.Admitted()),
				zap.Int("rejected", pair.Hits.Rejected))
			rep.addPair(pair)
		}
	}

	rep.Members = reg.MemberCount()
	rep.Clusters = reg.ClusterCount()
	return reg, rep, nil
}

// Emit walks a finished partition and hands every cluster of at least
// two members to the sink, then its identifier to the queue, in
// snapshot order under identifiers 1..N. Clusters below two members
// are counted and dropped. A nil sink counts without emitting; a nil
// queue skips fan-out only.
func Emit(ctx context.Context, reg *partition.Registry, sink ClusterSink, queue WorkQueue) (saved, singletons int, err error) {
	var id int64
	for _, c := range reg.Clusters() {
		if len(c.Members) < 2 {
			singletons++
			continue
		}
		id++
		if sink == nil {
			continue
		}
		if err := sink.SaveCluster(ctx, id, c.Members); err != nil {
			return saved, singletons, fmt.Errorf("saving cluster %d: %w", id, err)
		}
		if queue != nil {
			if err := queue.Enqueue(ctx, id); err != nil {
				return saved, singletons, fmt.Errorf("enqueueing cluster %d: %w", id, err)
			}
		}
		saved++
	}
	return saved, singletons, nil
}

// Run executes a full pass and emits the surviving clusters. A nil
// sink turns the pass into a dry run that persists nothing.
func (r *Runner) Run(ctx context.Context, cfg Config, sink ClusterSink, queue WorkQueue) (*Report, error) {
	reg, rep, err := r.Cluster(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rep.Saved, rep.Singletons, err = Emit(ctx, reg, sink, queue)
	if err != nil {
		return nil, phaseErr(PhasePersist, "", "", err)
	}

	r.log.Info("clustering pass complete",
		zap.Int("members", rep.Members),
		zap.Int("clusters", rep.Clusters),
		zap.Int("saved", rep.Saved),
		zap.Int("singletons", rep.Singletons))
	return rep, nil
}
