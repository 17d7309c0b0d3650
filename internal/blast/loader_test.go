package blast

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grisedale/linkclust/internal/store"
)

func newTestLoader(t *testing.T) (*Loader, *store.DB) {
	t.Helper()
	db, err := store.Open(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewLoader(db, nil), db
}

func reciprocalInput() string {
	return strings.Join([]string{
		row("pf|a1", "pf|a1", 200),
		row("pf|a1", "sc|b1", 150),
		row("sc|b1", "sc|b1", 180),
		row("sc|b1", "pf|a1", 150),
	}, "\n")
}

func TestLoadCountsAndStores(t *testing.T) {
	loader, db := newTestLoader(t)
	ctx := context.Background()

	res, err := loader.Load(ctx, strings.NewReader(reciprocalInput()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Hits != 4 || res.SelfHits != 2 || res.NewMembers != 2 || res.Skipped != 0 {
		t.Errorf("result = %+v, want 4 hits, 2 self, 2 new members, 0 skipped", res)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Members != 2 || stats.Hits != 4 || stats.SelfHits != 2 {
		t.Errorf("stats = %+v, want 2 members, 4 hits, 2 self", stats)
	}
}

func TestLoadCountsSkippedLines(t *testing.T) {
	loader, _ := newTestLoader(t)

	input := strings.Join([]string{
		row("pf|a1", "sc|b1", 150),
		"malformed line",
		row("pf|a1", "sc|b2", 120),
	}, "\n")
	res, err := loader.Load(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if res.Hits != 2 {
		t.Errorf("Hits = %d, want 2", res.Hits)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "hits.tsv")
	if err := os.WriteFile(plain, []byte(reciprocalInput()), 0o644); err != nil {
		t.Fatal(err)
	}

	// Gzip content behind a plain name: detection is by magic
	// number, not extension.
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(reciprocalInput())); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	zipped := filepath.Join(dir, "hits.compressed.tsv")
	if err := os.WriteFile(zipped, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for name, path := range map[string]string{"plain": plain, "gzip": zipped} {
		t.Run(name, func(t *testing.T) {
			loader, _ := newTestLoader(t)
			res, err := loader.LoadFile(context.Background(), path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if res.Files != 1 || res.Hits != 4 || res.SelfHits != 2 {
				t.Errorf("result = %+v, want 1 file, 4 hits, 2 self", res)
			}
		})
	}
}

func TestLoadFilesStopsAtFirstFailure(t *testing.T) {
	loader, _ := newTestLoader(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.tsv")
	if err := os.WriteFile(good, []byte(reciprocalInput()), 0o644); err != nil {
		t.Fatal(err)
	}

	total, err := loader.LoadFiles(context.Background(), []string{good, filepath.Join(dir, "missing.tsv")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if total.Files != 1 || total.Hits != 4 {
		t.Errorf("total = %+v, want counts from the first file only", total)
	}
}

func TestLoadFlushesLargeStreams(t *testing.T) {
	loader, db := newTestLoader(t)
	ctx := context.Background()

	// Four query blocks sharing one subject set, enough rows to
	// force a mid-stream flush. New members must not double-count
	// across flushes.
	const perBlock = 2000
	var sb strings.Builder
	for q := 1; q <= 4; q++ {
		query := fmt.Sprintf("pf|q%d", q)
		sb.WriteString(row(query, query, 500) + "\n")
		for i := 0; i < perBlock-1; i++ {
			sb.WriteString(row(query, fmt.Sprintf("sc|s%04d", i), float64(100+i%50)) + "\n")
		}
	}

	res, err := loader.Load(ctx, strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Hits != 4*perBlock {
		t.Errorf("Hits = %d, want %d", res.Hits, 4*perBlock)
	}
	if res.SelfHits != 4 {
		t.Errorf("SelfHits = %d, want 4", res.SelfHits)
	}
	wantMembers := 4 + (perBlock - 1)
	if res.NewMembers != wantMembers {
		t.Errorf("NewMembers = %d, want %d", res.NewMembers, wantMembers)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Hits != int64(4*perBlock) || stats.Members != int64(wantMembers) {
		t.Errorf("stats = %+v, want %d hits, %d members", stats, 4*perBlock, wantMembers)
	}
}

func TestLoadResultAdd(t *testing.T) {
	a := LoadResult{Files: 1, Hits: 10, SelfHits: 2, NewMembers: 5, Skipped: 1}
	a.Add(LoadResult{Files: 2, Hits: 20, SelfHits: 3, NewMembers: 7, Skipped: 0})
	want := LoadResult{Files: 3, Hits: 30, SelfHits: 5, NewMembers: 12, Skipped: 1}
	if a != want {
		t.Errorf("Add = %+v, want %+v", a, want)
	}
}
