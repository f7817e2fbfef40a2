package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations
var migrations embed.FS

var placeholder = regexp.MustCompile(`\$\d+`)

// DB wraps the database connection
type DB struct {
	*sql.DB
	driver string
}

// Open establishes a connection for driver and applies the schema.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer; concurrent connections would contend on the file lock.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	db := &DB{DB: sqlDB, driver: driver}
	if err := db.RunMigrations(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Driver returns the driver name the connection was opened with
func (db *DB) Driver() string {
	return db.driver
}

// RunMigrations executes the embedded SQL files for the driver in order.
// Every statement is idempotent.
func (db *DB) RunMigrations(ctx context.Context) error {
	dir := path.Join("migrations", db.driver)
	files, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		content, err := migrations.ReadFile(path.Join(dir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
		}
	}
	return nil
}

// rebind rewrites $N placeholders for drivers that take ? instead
func (db *DB) rebind(query string) string {
	if db.driver == DriverSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

// InsertAlerts archives a batch of alerts in one transaction
func (db *DB) InsertAlerts(ctx context.Context, records []AlertRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
		INSERT INTO decrypted_alerts (source_timestamp, score, key_id, opened_with, trials, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.SourceTimestamp, r.Score, r.KeyID, r.OpenedWith, r.Trials, r.ReceivedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// RecentAlerts returns up to limit alerts, most recently received first
func (db *DB) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := db.QueryContext(ctx, db.rebind(`
		SELECT id, source_timestamp, score, key_id, opened_with, trials, received_at
		FROM decrypted_alerts
		ORDER BY received_at DESC, id DESC
		LIMIT $1
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		if err := rows.Scan(&r.ID, &r.SourceTimestamp, &r.Score, &r.KeyID, &r.OpenedWith, &r.Trials, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats summarizes the archived alerts
func (db *DB) Stats(ctx context.Context) (*AlertStats, error) {
	stats := &AlertStats{ByKey: make(map[string]int64)}

	var maxScore sql.NullFloat64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(score) FROM decrypted_alerts`).Scan(&stats.Total, &maxScore)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if maxScore.Valid {
		stats.MaxScore = &maxScore.Float64
	}

	rows, err := db.QueryContext(ctx, `SELECT key_id, COUNT(*) FROM decrypted_alerts GROUP BY key_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to group alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert group: %w", err)
		}
		stats.ByKey[key] = n
	}
	return stats, rows.Err()
}
