package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/grisedale/linkclust/internal/blast"
	"github.com/grisedale/linkclust/internal/store"
)

func runLoad(args []string) error {
	var (
		paths   []string
		dbPath  string
		replace bool
		verbose bool
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			dbPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			dbPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--replace":
			replace = true
		case args[i] == "--verbose":
			verbose = true
		case args[i] == "-":
			// stdin
			paths = append(paths, args[i])
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			paths = append(paths, args[i])
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: linkclust load <hits.tsv...> [--db PATH] [--replace]")
	}

	log, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	db, err := store.Open(store.Config{DBPath: dbPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if replace {
		if err := db.Reset(ctx); err != nil {
			return fmt.Errorf("clearing previous data: %w", err)
		}
	}

	res, err := blast.NewLoader(db, log).LoadFiles(ctx, paths)
	if err != nil {
		return err
	}

	fmt.Printf("loaded %d hits (%d self) from %d files: %d new members, %d lines skipped\n",
		res.Hits, res.SelfHits, res.Files, res.NewMembers, res.Skipped)
	return nil
}
