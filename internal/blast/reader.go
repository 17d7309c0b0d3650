// Package blast loads tab-separated sequence search output into the
// hit store.
//
// The reader understands the 12-column tabular format (BLAST
// -outfmt 6, DIAMOND's default): qseqid sseqid pident length mismatch
// gapopen qstart qend sstart send evalue bitscore. Only the two
// identifiers and the bit score are consumed. Identifiers carry their
// source group as a GROUP|name prefix. Search programs emit the hits
// of one query contiguously; the reader ranks each such block on the
// fly, so files of any size stream through bounded memory.
package blast

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Columns is the column count of the tabular format.
const Columns = 12

// RankedHit is one ranked row of a query block. Rank 0 is the query's
// self-hit; other hits are ranked 1..n by descending score, ties
// broken by subject identifier.
type RankedHit struct {
	Query        string
	Subject      string
	QueryGroup   string
	SubjectGroup string
	Score        float64
	Rank         int
}

// Block is the ranked hit set of one query.
type Block struct {
	Query string
	Hits  []RankedHit
}

// SplitSeqID splits a GROUP|identifier sequence id into its parts.
func SplitSeqID(id string) (group, name string, ok bool) {
	i := strings.IndexByte(id, '|')
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

type rawHit struct {
	subject      string
	subjectGroup string
	score        float64
}

// ScanBlocks streams ranked query blocks from r, returning the number
// of malformed lines skipped. Comment lines (#) and blank lines are
// ignored without counting. A callback error stops the scan.
func ScanBlocks(ctx context.Context, r io.Reader, emit func(Block) error) (skipped int, err error) {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	sc.Buffer(buf, 1024*1024)

	var (
		curQuery string
		curGroup string
		pending  []rawHit
	)

	flush := func() error {
		if curQuery == "" {
			return nil
		}
		b := rankBlock(curQuery, curGroup, pending)
		pending = pending[:0]
		return emit(b)
	}

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		default:
		}

		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != Columns {
			skipped++
			continue
		}
		query, subject := fields[0], fields[1]
		queryGroup, _, ok := SplitSeqID(query)
		if !ok {
			skipped++
			continue
		}
		subjectGroup, _, ok := SplitSeqID(subject)
		if !ok {
			skipped++
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(fields[Columns-1]), 64)
		if err != nil {
			skipped++
			continue
		}

		if query != curQuery {
			if err := flush(); err != nil {
				return skipped, err
			}
			curQuery, curGroup = query, queryGroup
		}
		pending = append(pending, rawHit{subject: subject, subjectGroup: subjectGroup, score: score})
	}
	if err := sc.Err(); err != nil {
		return skipped, fmt.Errorf("scanning hits: %w", err)
	}
	return skipped, flush()
}

// rankBlock collapses repeated subjects (multiple HSPs) to their best
// score, then assigns ranks: self-hit 0, the rest 1..n.
func rankBlock(query, queryGroup string, rows []rawHit) Block {
	bySubject := make(map[string]int, len(rows))
	agg := make([]rawHit, 0, len(rows))
	for _, r := range rows {
		if i, ok := bySubject[r.subject]; ok {
			if r.score > agg[i].score {
				agg[i].score = r.score
			}
			continue
		}
		bySubject[r.subject] = len(agg)
		agg = append(agg, r)
	}

	var self *rawHit
	nonSelf := make([]rawHit, 0, len(agg))
	for i := range agg {
		if agg[i].subject == query {
			self = &agg[i]
			continue
		}
		nonSelf = append(nonSelf, agg[i])
	}
	sort.Slice(nonSelf, func(i, j int) bool {
		if nonSelf[i].score != nonSelf[j].score {
			return nonSelf[i].score > nonSelf[j].score
		}
		return nonSelf[i].subject < nonSelf[j].subject
	})

	b := Block{Query: query, Hits: make([]RankedHit, 0, len(agg))}
	if self != nil {
		b.Hits = append(b.Hits, RankedHit{
			Query: query, Subject: query,
			QueryGroup: queryGroup, SubjectGroup: queryGroup,
			Score: self.score, Rank: 0,
		})
	}
	for i, r := range nonSelf {
		b.Hits = append(b.Hits, RankedHit{
			Query: query, Subject: r.subject,
			QueryGroup: queryGroup, SubjectGroup: r.subjectGroup,
			Score: r.score, Rank: i + 1,
		})
	}
	return b
}
