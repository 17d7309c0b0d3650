package blast

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/grisedale/linkclust/internal/store"
)

// flushEvery bounds loader memory: ranked rows go to the store in
// slices of roughly this size (the store batches further itself).
const flushEvery = 5000

// LoadResult summarizes an import.
type LoadResult struct {
	Files      int
	Hits       int
	SelfHits   int
	NewMembers int
	Skipped    int
}

// Add folds o into r.
func (r *LoadResult) Add(o LoadResult) {
	r.Files += o.Files
	r.Hits += o.Hits
	r.SelfHits += o.SelfHits
	r.NewMembers += o.NewMembers
	r.Skipped += o.Skipped
}

// Loader imports tabular hit files into the store.
type Loader struct {
	db  *store.DB
	log *zap.Logger
}

// NewLoader wires a loader to its store. A nil logger disables
// logging.
func NewLoader(db *store.DB, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{db: db, log: log}
}

// LoadFiles imports every named file, stopping at the first failure.
// Totals cover everything imported up to that point.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) (LoadResult, error) {
	var total LoadResult
	for _, path := range paths {
		res, err := l.LoadFile(ctx, path)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LoadFile imports one hit file. "-" reads stdin; gzip input is
// detected by magic number or a .gz suffix.
func (l *Loader) LoadFile(ctx context.Context, path string) (LoadResult, error) {
	rc, err := openHits(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	res, err := l.Load(ctx, rc)
	res.Files = 1
	if err != nil {
		return res, fmt.Errorf("loading %s: %w", path, err)
	}

	l.log.Info("hits loaded",
		zap.String("file", path),
		zap.Int("hits", res.Hits),
		zap.Int("self_hits", res.SelfHits),
		zap.Int("new_members", res.NewMembers),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// Load imports one tabular stream.
func (l *Loader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	var res LoadResult
	batch := make([]store.Hit, 0, flushEvery)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.db.InsertHits(ctx, batch)
		res.NewMembers += n
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("storing hits: %w", err)
		}
		return nil
	}

	skipped, err := ScanBlocks(ctx, r, func(b Block) error {
		for _, h := range b.Hits {
			res.Hits++
			if h.Rank == 0 {
				res.SelfHits++
			}
			batch = append(batch, store.Hit{
				QuerySeq:     h.Query,
				SubjectSeq:   h.Subject,
				QueryGroup:   h.QueryGroup,
				SubjectGroup: h.SubjectGroup,
				Score:        h.Score,
				Rank:         h.Rank,
			})
		}
		if len(batch) >= flushEvery {
			return flush()
		}
		return nil
	})
	res.Skipped += skipped
	if err != nil {
		return res, err
	}
	return res, flush()
}

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openHits opens a hit file, handling "-" (stdin) and gzip input.
func openHits(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// Detect gzip by magic number (1F 8B) or by .gz suffix.
	var sig [2]byte
	n, _ := fh.Read(sig[:])
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		_ = fh.Close()
		return nil, err
	}
	if (n == 2 && sig[0] == 0x1f && sig[1] == 0x8b) || strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			_ = fh.Close()
			return nil, err
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, fh}}, nil
	}
	return fh, nil
}
