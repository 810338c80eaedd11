package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/shapedtime/cloudlib/internal/library"
)

func main() {
	sqlitePath := flag.String("sqlite-path", "", "Path to SQLite catalog file")
	pgURL := flag.String("pg-url", "", "PostgreSQL connection URL")
	flag.Parse()

	if *sqlitePath == "" || *pgURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: migrate-to-pg --sqlite-path /path/to/cloudlib.db --pg-url postgres://...\n")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// Opening through the library brings both schemas to the latest version.
	src, err := library.NewDB(*sqlitePath)
	if err != nil {
		slog.Error("Failed to open SQLite", "error", err)
		os.Exit(1)
	}
	defer src.Close()
	slog.Info("Connected to SQLite", "path", *sqlitePath)

	dst, err := library.Open(library.DialectPostgres, *pgURL)
	if err != nil {
		slog.Error("Failed to open PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dst.Close()
	slog.Info("Connected to PostgreSQL")

	counts, err := copyCatalog(context.Background(), src, dst)
	if err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	for _, t := range tables {
		slog.Info("Migrated table", "table", t.name, "rows", counts[t.name])
	}
	slog.Info("Migration completed successfully")
}
