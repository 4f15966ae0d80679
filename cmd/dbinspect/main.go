// Package main provides a tool that audits denormalized counters.
//
// Every like, bookmark, follower, following, and comment-like counter is
// recomputed from its membership records and compared with the stored value.
//
// Usage:
//
//	DB_PATH=~/arasuji/db go run ./cmd/dbinspect
//	DB_PATH=~/arasuji/arasuji.db STORE=sqlite go run ./cmd/dbinspect -fix
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/arasuji/arasuji-server/internal/config"
	"github.com/arasuji/arasuji-server/internal/logger"
	"github.com/arasuji/arasuji-server/internal/service"
	"github.com/arasuji/arasuji-server/internal/store"
	"github.com/arasuji/arasuji-server/internal/store/sqlite"
)

var fix = flag.Bool("fix", false, "Rewrite drifting counters to their recomputed values")

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/arasuji/db")
	}

	drifted, err := run(context.Background(), os.Getenv("STORE"), dbPath)
	if err != nil {
		log.Fatal(err)
	}
	if drifted > 0 && !*fix {
		fmt.Printf("%d counters drifted. Run with -fix to repair them.\n", drifted)
		os.Exit(1)
	}
}

func run(ctx context.Context, backend, dbPath string) (int, error) {
	db, err := openStore(backend, dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	auditor := service.NewCounterAuditor(db, logger.New(logger.Config{Level: logger.ParseLevel("warn")}).Logger)

	var report *service.AuditReport
	if *fix {
		report, err = auditor.Reconcile(ctx)
	} else {
		report, err = auditor.Audit(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("audit failed: %w", err)
	}

	fmt.Println("=== Counter Audit ===")
	fmt.Println()
	fmt.Printf("Posts:    %d\n", report.Posts)
	fmt.Printf("Users:    %d\n", report.Users)
	fmt.Printf("Comments: %d\n", report.Comments)
	fmt.Println()

	if len(report.Drifts) == 0 {
		fmt.Println("All counters match their records.")
		return 0, nil
	}

	for _, d := range report.Drifts {
		fmt.Printf("%s %s: stored %d, actual %d\n", d.Path, d.Field, d.Stored, d.Actual)
	}
	fmt.Println()

	if *fix {
		fmt.Printf("Reconciled %d counters.\n", len(report.Drifts))
	}
	return len(report.Drifts), nil
}

func openStore(backend, path string) (store.Backend, error) {
	if backend == config.BackendSQLite {
		return sqlite.Open(path, nil)
	}
	return store.New(path, nil)
}
