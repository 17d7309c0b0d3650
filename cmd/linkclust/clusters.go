package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grisedale/linkclust/internal/store"
)

func runClusters(args []string) error {
	var (
		dbPath string
		runID  string
		limit  int
	)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--db" && i+1 < len(args):
			i++
			dbPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			dbPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--run" && i+1 < len(args):
			i++
			runID = args[i]
		case strings.HasPrefix(args[i], "--run="):
			runID = strings.TrimPrefix(args[i], "--run=")
		case args[i] == "--limit" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return fmt.Errorf("parsing --limit: %w", err)
			}
			limit = n
		case strings.HasPrefix(args[i], "--limit="):
			n, err := strconv.Atoi(strings.TrimPrefix(args[i], "--limit="))
			if err != nil {
				return fmt.Errorf("parsing --limit: %w", err)
			}
			limit = n
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

	ctx := context.Background()
	var run *store.Run
	if runID == "" {
		run, err = db.LatestRun(ctx, store.RunComplete)
		if err != nil {
			return fmt.Errorf("finding latest run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("no completed runs")
		}
	} else {
		run, err = db.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("looking up run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("run %s not found", runID)
		}
	}

	rows, err := db.RunClusters(ctx, run.ID, limit)
	if err != nil {
		return fmt.Errorf("listing clusters: %w", err)
	}

	fmt.Printf("run %s (%s over %s, %s)\n",
		run.ID, run.Policy, strings.Join(run.Groups, ", "), run.Status)
	if len(rows) == 0 {
		fmt.Println("  no clusters")
		return nil
	}
	for _, row := range rows {
		fmt.Printf("  %d (%d): %s\n", row.ClusterID, row.Size, strings.Join(row.SeqIDs, " "))
	}
	return nil
}
