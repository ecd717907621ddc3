// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	embeddedmigrations "github.com/adiadia/coverage-tracker/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaMigrationLockID int64 = 0x4356525f4d494752 // "CVR_MIGR"

// Relations the board and the recontact outbox read through. The position
// index backs board ordering; the due index backs the worker claim query.
var requiredRelations = []string{
	"patients",
	"patients_position_idx",
	"recontact_requests",
	"recontact_requests_due_idx",
}

var requiredPatientColumns = []string{
	"id",
	"position",
	"name",
	"text_response_status",
	"eligibility_status",
	"coverage_status",
}

type SchemaHealthChecker struct {
	pool *pgxpool.Pool
}

func NewSchemaHealthChecker(pool *pgxpool.Pool) *SchemaHealthChecker {
	return &SchemaHealthChecker{pool: pool}
}

func (h *SchemaHealthChecker) Check(ctx context.Context) error {
	return SchemaReady(ctx, h.pool)
}

// EnsureSchema applies every embedded migration whose version is not yet
// recorded. Concurrent api and worker processes serialize on an advisory
// lock.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return errors.New("nil database pool")
	}
	if logger == nil {
		logger = slog.Default()
	}

	started := time.Now()

	files, err := embeddedmigrations.Ordered()
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	if len(files) == 0 {
		return errors.New("no embedded migrations found")
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection for schema bootstrap: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, schemaMigrationLockID); err != nil {
		return fmt.Errorf("acquire schema bootstrap lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, unlockErr := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, schemaMigrationLockID); unlockErr != nil {
			logger.Error("schema bootstrap unlock failed", "error", unlockErr)
		}
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	pending := pendingMigrations(files, applied)
	logger.Info("schema bootstrap starting",
		"known", len(files),
		"pending", len(pending),
	)

	for _, file := range pending {
		if err := applyMigration(ctx, conn, file); err != nil {
			return fmt.Errorf("apply migration %s: %w", file.Name, err)
		}
		logger.Info("migration applied", "file", file.Name, "version", file.Version)
	}

	logger.Info("schema bootstrap complete",
		"applied", len(pending),
		"schema_version", files[len(files)-1].Version,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return SchemaReady(ctx, pool)
}

func appliedVersions(ctx context.Context, conn *pgxpool.Conn) (map[int]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	out := make(map[int]bool, len(versions))
	for _, v := range versions {
		out[int(v)] = true
	}
	return out, nil
}

// pendingMigrations keeps the version order of files.
func pendingMigrations(files []embeddedmigrations.File, applied map[int]bool) []embeddedmigrations.File {
	out := make([]embeddedmigrations.File, 0, len(files))
	for _, f := range files {
		if !applied[f.Version] {
			out = append(out, f)
		}
	}
	return out
}

func applyMigration(ctx context.Context, conn *pgxpool.Conn, file embeddedmigrations.File) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, file.SQL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO schema_migrations (version, filename)
		VALUES ($1, $2)
	`, file.Version, file.Name); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SchemaReady reports whether the database is at the latest embedded
// version and still carries what the board and outbox depend on.
func SchemaReady(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("nil database pool")
	}

	files, err := embeddedmigrations.Ordered()
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	var current *int32
	if err := pool.QueryRow(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := checkVersion(files, current); err != nil {
		return err
	}

	var missing []string
	for _, name := range requiredRelations {
		var found *string
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, "public."+name).Scan(&found); err != nil {
			return fmt.Errorf("check relation %s: %w", name, err)
		}
		if found == nil || strings.TrimSpace(*found) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required relations missing: %s", strings.Join(missing, ", "))
	}

	rows, err := pool.Query(ctx, `
		SELECT column_name::text
		FROM information_schema.columns
		WHERE table_schema = 'public'
		  AND table_name = 'patients'
	`)
	if err != nil {
		return fmt.Errorf("list patient columns: %w", err)
	}
	present, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan patient columns: %w", err)
	}
	if cols := missingColumns(requiredPatientColumns, present); len(cols) > 0 {
		return fmt.Errorf("patients columns missing: %s", strings.Join(cols, ", "))
	}

	return nil
}

func checkVersion(files []embeddedmigrations.File, current *int32) error {
	if len(files) == 0 {
		return errors.New("no embedded migrations found")
	}
	latest := files[len(files)-1].Version
	if current == nil {
		return fmt.Errorf("schema not initialized (want version %d)", latest)
	}
	if int(*current) < latest {
		return fmt.Errorf("schema at version %d, want %d", *current, latest)
	}
	return nil
}

func missingColumns(required, present []string) []string {
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}

	var out []string
	for _, c := range required {
		if !have[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
