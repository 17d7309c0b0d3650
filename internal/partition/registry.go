// Package partition maintains a disjoint-set partition of sequence members
// for single-linkage clustering.
//
// Cluster records live in an arena indexed by integer handle, with a
// member-to-handle map on top. Merging reparents the smaller record's
// members onto the larger one by rewriting map entries and leaves the
// absorbed record empty; nothing is ever freed or re-rooted, so handles
// stay valid for the lifetime of the registry.
package partition

import "sort"

// Member is the opaque integer identifier of one sequence in the
// similarity database.
type Member int64

// Cluster is one live cluster in a partition snapshot. Members keep the
// order in which they entered the surviving record.
type Cluster struct {
	Rep     Member   `json:"rep"`
	Members []Member `json:"members"`
}

type record struct {
	members []Member // nil once the record has been absorbed
}

// Registry is the mutable partition. The zero value is not usable; create
// one with NewRegistry.
type Registry struct {
	arena    []record
	byMember map[Member]int
	live     int
}

// NewRegistry returns an empty partition.
func NewRegistry() *Registry {
	return &Registry{byMember: make(map[Member]int)}
}

// Find returns the handle of m's cluster. An unseen member gets a fresh
// singleton cluster, so Find is total over the member domain.
func (r *Registry) Find(m Member) int {
	if h, ok := r.byMember[m]; ok {
		return h
	}
	h := len(r.arena)
	r.arena = append(r.arena, record{members: []Member{m}})
	r.byMember[m] = h
	r.live++
	return h
}

// Union places a and b in the same cluster and returns the surviving
// handle. A no-op when they already share one. The smaller cluster is
// absorbed into the larger to bound total reparenting work; which record
// survives is not part of the contract and callers must not rely on
// representative stability across merges.
func (r *Registry) Union(a, b Member) int {
	ha, hb := r.Find(a), r.Find(b)
	if ha == hb {
		return ha
	}
	if len(r.arena[ha].members) < len(r.arena[hb].members) {
		ha, hb = hb, ha
	}
	absorbed := r.arena[hb].members
	r.arena[hb].members = nil
	r.arena[ha].members = append(r.arena[ha].members, absorbed...)
	for _, m := range absorbed {
		r.byMember[m] = ha
	}
	r.live--
	return ha
}

// ClusterCount returns the number of live clusters.
func (r *Registry) ClusterCount() int { return r.live }

// MemberCount returns the number of distinct members seen so far.
func (r *Registry) MemberCount() int { return len(r.byMember) }

// Clusters returns a snapshot of the live partition, one entry per cluster
// with at least one reachable member. The snapshot is ordered by each
// cluster's smallest member, which does not depend on the edge order that
// produced the partition; member slices are copies in insertion order.
func (r *Registry) Clusters() []Cluster {
	type keyed struct {
		min Member
		c   Cluster
	}
	rows := make([]keyed, 0, r.live)
	for _, rec := range r.arena {
		if len(rec.members) == 0 {
			continue
		}
		min := rec.members[0]
		for _, m := range rec.members[1:] {
			if m < min {
				min = m
			}
		}
		rows = append(rows, keyed{
			min: min,
			c: Cluster{
				Rep:     rec.members[0],
				Members: append([]Member(nil), rec.members...),
			},
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].min < rows[j].min })

	out := make([]Cluster, len(rows))
	for i := range rows {
		out[i] = rows[i].c
	}
	return out
}
