package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/grisedale/linkclust/internal/store"
)

func runStats(args []string) error {
	var dbPath string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			dbPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			dbPath = strings.TrimPrefix(args[i], "--db=")
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	db, err := store.Open(store.Config{DBPath: dbPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Printf("members        %d\n", stats.Members)
	fmt.Printf("hits           %d\n", stats.Hits)
	fmt.Printf("self-hits      %d\n", stats.SelfHits)
	fmt.Printf("runs           %d\n", stats.Runs)
	fmt.Printf("pending work   %d\n", stats.PendingWork)
	fmt.Printf("database size  %s\n", humanize.Bytes(uint64(stats.DBSizeBytes)))
	return nil
}
