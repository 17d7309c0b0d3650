package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/grisedale/linkclust/internal/config"
	"github.com/grisedale/linkclust/internal/linkage"
	"github.com/grisedale/linkclust/internal/store"
)

func runRun(args []string) error {
	var (
		o       config.Overrides
		dryRun  bool
		verbose bool
	)
	flagTrue := true
	flagFalse := false

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			i++
			o.ConfigPath = args[i]
		case strings.HasPrefix(args[i], "--config="):
			o.ConfigPath = strings.TrimPrefix(args[i], "--config=")
		case args[i] == "--db" && i+1 < len(args):
			i++
			o.DBPath = args[i]
		case strings.HasPrefix(args[i], "--db="):
			o.DBPath = strings.TrimPrefix(args[i], "--db=")
		case args[i] == "--groups" && i+1 < len(args):
			i++
			o.Groups = args[i]
		case strings.HasPrefix(args[i], "--groups="):
			o.Groups = strings.TrimPrefix(args[i], "--groups=")
		case args[i] == "--bsr" && i+1 < len(args):
			i++
			f, err := strconv.ParseFloat(args[i], 64)
			if err != nil {
				return fmt.Errorf("parsing --bsr: %w", err)
			}
			o.BSRThreshold = &f
		case strings.HasPrefix(args[i], "--bsr="):
			f, err := strconv.ParseFloat(strings.TrimPrefix(args[i], "--bsr="), 64)
			if err != nil {
				return fmt.Errorf("parsing --bsr: %w", err)
			}
			o.BSRThreshold = &f
		case args[i] == "--all-hits":
			o.AllHits = &flagTrue
		case args[i] == "--best-only":
			o.BestOnly = &flagTrue
		case args[i] == "--no-rbh":
			o.IncludeRBH = &flagFalse
		case args[i] == "--dry-run":
			dryRun = true
		case args[i] == "--verbose":
			verbose = true
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			return fmt.Errorf("unexpected argument: %s", args[i])
		}
	}

	cfg, err := config.Resolve(o)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	db, err := store.Open(store.Config{DBPath: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	runner := linkage.NewRunner(db, log)
	lcfg := linkage.Config{Groups: cfg.Groups, Policy: cfg.Policy(), IncludeRBH: cfg.IncludeRBH}

	if dryRun {
		rep, err := runner.Run(ctx, lcfg, nil, nil)
		if err != nil {
			return err
		}
		fmt.Print(rep.Format())
		fmt.Println("dry run: nothing persisted")
		return nil
	}

	runID, err := db.StartRun(ctx, cfg.Groups, lcfg.Policy.String())
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	writer, err := db.BeginPartition(ctx, runID)
	if err != nil {
		err = fmt.Errorf("beginning partition: %w", err)
		recordFailure(ctx, db, log, runID, err)
		return err
	}

	rep, err := runner.Run(ctx, lcfg, writer, writer)
	if err != nil {
		writer.Abort()
		recordFailure(ctx, db, log, runID, err)
		return err
	}
	if err := writer.Commit(); err != nil {
		err = fmt.Errorf("committing partition: %w", err)
		recordFailure(ctx, db, log, runID, err)
		return err
	}

	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := db.CompleteRun(ctx, runID, string(body)); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	fmt.Printf("run %s\n", runID)
	fmt.Print(rep.Format())
	return nil
}

// recordFailure marks the run failed so post-mortems can see where it
// died. Errors without a phase of their own are store-side, so they
// fall under persist.
func recordFailure(ctx context.Context, db *store.DB, log *zap.Logger, runID string, err error) {
	phase := string(linkage.PhasePersist)
	var pe *linkage.PhaseError
	if errors.As(err, &pe) {
		phase = string(pe.Phase)
	}
	if ferr := db.FailRun(ctx, runID, phase, err.Error()); ferr != nil {
		log.Warn("recording run failure", zap.String("run", runID), zap.Error(ferr))
	}
}
