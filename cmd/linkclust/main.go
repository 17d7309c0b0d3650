package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/grisedale/linkclust/internal/admit"
	"github.com/grisedale/linkclust/internal/config"
	"github.com/grisedale/linkclust/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "load":
		if err := runLoad(os.Args[2:]); err != nil {
			fatal(err)
		}
	case "run":
		if err := runRun(os.Args[2:]); err != nil {
			fatal(err)
		}
	case "clusters":
		if err := runClusters(os.Args[2:]); err != nil {
			fatal(err)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fatal(err)
		}
	case "version", "--version", "-v":
		fmt.Printf("linkclust %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// newLogger builds the CLI logger. The default stays quiet below warn
// so stdout remains the report surface; --verbose switches to the
// development config at debug level.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func printUsage() {
	fmt.Printf(`linkclust %s — single-linkage clustering of pairwise sequence hits

Usage:
  linkclust <command> [arguments]

Commands:
  load <hits.tsv...>  Import 12-column tabular hits (BLAST -outfmt 6, DIAMOND)
  run                 Cluster the configured groups and persist the partition
  clusters            List the clusters of a run
  stats               Show database counts
  version             Print version

Load Flags:
  --db PATH           Database file (default %s)
  --replace           Clear existing hits and runs before loading

Run Flags:
  --config PATH       Config file (default %s)
  --db PATH           Database file
  --groups A,B        Source groups to cluster (comma-separated)
  --all-hits          Admit every candidate edge
  --best-only         Admit best-rank edges only
  --bsr F             Score ratio threshold (default %g)
  --no-rbh            Skip reciprocal-best-hit linking
  --dry-run           Report without persisting anything
  --verbose           Debug logging

Clusters Flags:
  --db PATH           Database file
  --run ID            Run to list (default: latest completed)
  --limit N           Show at most N clusters

Flags:
  -h, --help          Show this help message
  -v, --version       Print version
`, version, store.DefaultDBPath, config.DefaultConfigPath(), admit.DefaultBSRThreshold)
}
