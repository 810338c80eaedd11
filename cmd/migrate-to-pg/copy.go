package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shapedtime/cloudlib/internal/library"
)

type table struct {
	name    string
	columns string
	serial  bool
}

// tables in foreign-key order.
var tables = []table{
	{"media", "id, external_id, kind, name, year, overview, poster_url, backdrop_url, cast_members, created_at, updated_at", true},
	{"videos", "id, media_id, remote_location_id, file_name, size_bytes, created_at", true},
	{"folders", "id, media_id, remote_location_id, name, created_at", true},
	{"episodes", "id, show_id, season_number, episode_number, remote_video_id, file_name, size_bytes, title, overview, still_url, created_at, updated_at", true},
	{"subtitles", "id, item_type, item_id, language_code, language_name, format, file_path, file_size, created_at", true},
	{"sync_metadata", "key, value, updated_at", false},
}

// copyCatalog replaces the destination catalog with the source one in a
// single transaction and verifies row counts before committing. Ids are
// preserved.
func copyCatalog(ctx context.Context, src, dst *library.DB) (map[string]int64, error) {
	tx, err := dst.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, clearSQL(dst.Dialect(), tables[i].name)); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", tables[i].name, err)
		}
	}

	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		n, err := copyTable(ctx, src, tx, t, dst.Dialect())
		if err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
		counts[t.name] = n
	}

	if dst.Dialect() == library.DialectPostgres {
		for _, t := range tables {
			if !t.serial {
				continue
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf(
				"SELECT setval('%s_id_seq', COALESCE((SELECT MAX(id) FROM %s), 1), (SELECT COUNT(*) > 0 FROM %s))",
				t.name, t.name, t.name,
			))
			if err != nil {
				return nil, fmt.Errorf("failed to reset sequence for %s: %w", t.name, err)
			}
		}
	}

	for _, t := range tables {
		var srcCount, dstCount int64
		if err := src.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&srcCount); err != nil {
			return nil, fmt.Errorf("failed to count source rows for %s: %w", t.name, err)
		}
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&dstCount); err != nil {
			return nil, fmt.Errorf("failed to count target rows for %s: %w", t.name, err)
		}
		if srcCount != dstCount {
			return nil, fmt.Errorf("row count mismatch for %s: source=%d target=%d", t.name, srcCount, dstCount)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return counts, nil
}

func clearSQL(dialect library.Dialect, name string) string {
	if dialect == library.DialectPostgres {
		return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", name)
	}
	return "DELETE FROM " + name
}

func insertSQL(dialect library.Dialect, t table) string {
	n := len(strings.Split(t.columns, ","))
	placeholders := make([]string, n)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	overriding := ""
	if dialect == library.DialectPostgres && t.serial {
		overriding = " OVERRIDING SYSTEM VALUE"
	}
	return fmt.Sprintf("INSERT INTO %s (%s)%s VALUES (%s)",
		t.name, t.columns, overriding, strings.Join(placeholders, ", "))
}

func copyTable(ctx context.Context, src library.Querier, tx *sql.Tx, t table, dialect library.Dialect) (int64, error) {
	rows, err := src.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s", t.columns, t.name))
	if err != nil {
		return 0, fmt.Errorf("failed to query source: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to get columns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(dialect, t))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var count int64
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return 0, fmt.Errorf("failed to scan row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return 0, fmt.Errorf("failed to insert row: %w", err)
		}
		count++
	}
	return count, rows.Err()
}
