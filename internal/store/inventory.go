package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/model"
)

const rowColumns = `id, owner_id, snapshot_name, batch_id, article, display_name, group_name, quantity, created_at`

// InsertRows writes one submission batch. Either every row is stored or none is.
func InsertRows(ctx context.Context, d *db.DB, rows []model.Row) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.Rebind(
		`INSERT INTO inventory (owner_id, snapshot_name, batch_id, article, display_name, group_name, quantity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.OwnerID, r.SnapshotName, r.BatchID, r.Article, r.DisplayName, r.GroupName, r.Quantity, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting article %q: %w", r.Article, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing inventory: %w", err)
	}
	return nil
}

// ListSnapshotNames returns distinct snapshot names, newest batch first.
// A nil ownerID lists names across all owners.
func ListSnapshotNames(ctx context.Context, d *db.DB, ownerID *int64) ([]string, error) {
	var rows *sql.Rows
	var err error

	if ownerID != nil {
		rows, err = d.QueryContext(ctx, d.Rebind(
			`SELECT snapshot_name FROM inventory WHERE owner_id = ?
			 GROUP BY snapshot_name
			 ORDER BY MAX(created_at) DESC, MAX(id) DESC`), *ownerID,
		)
	} else {
		rows, err = d.QueryContext(ctx,
			`SELECT snapshot_name FROM inventory
			 GROUP BY snapshot_name
			 ORDER BY MAX(created_at) DESC, MAX(id) DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshot names: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

// ListSnapshotNamesBetween returns distinct names with at least one row created
// in [from, to), newest batch first.
func ListSnapshotNamesBetween(ctx context.Context, d *db.DB, from, to time.Time) ([]string, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT snapshot_name FROM inventory
		 WHERE created_at >= ? AND created_at < ?
		 GROUP BY snapshot_name
		 ORDER BY MAX(created_at) DESC, MAX(id) DESC`), from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot names by date: %w", err)
	}
	defer rows.Close()

	return scanNames(rows)
}

// LatestBatchID returns the batch with the highest created_at (then id) for the
// owner, or an empty string if the owner has no rows.
func LatestBatchID(ctx context.Context, d *db.DB, ownerID int64) (string, error) {
	var batchID string
	err := d.QueryRowContext(ctx, d.Rebind(
		`SELECT batch_id FROM inventory WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`), ownerID,
	).Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("finding latest batch: %w", err)
	}
	return batchID, nil
}

// ListBatchRows returns the rows of one batch in insertion order.
func ListBatchRows(ctx context.Context, d *db.DB, batchID string) ([]model.Row, error) {
	rows, err := d.QueryContext(ctx, d.Rebind(
		`SELECT `+rowColumns+` FROM inventory WHERE batch_id = ? ORDER BY id`), batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing batch rows: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// ListSnapshotRows returns every row stored under name in insertion order.
// A nil ownerID includes rows of all owners.
func ListSnapshotRows(ctx context.Context, d *db.DB, name string, ownerID *int64) ([]model.Row, error) {
	var rows *sql.Rows
	var err error

	if ownerID != nil {
		rows, err = d.QueryContext(ctx, d.Rebind(
			`SELECT `+rowColumns+` FROM inventory WHERE snapshot_name = ? AND owner_id = ? ORDER BY id`),
			name, *ownerID,
		)
	} else {
		rows, err = d.QueryContext(ctx, d.Rebind(
			`SELECT `+rowColumns+` FROM inventory WHERE snapshot_name = ? ORDER BY id`), name,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshot rows: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// DeleteSnapshot removes every row named name regardless of owner and returns
// how many rows were deleted.
func DeleteSnapshot(ctx context.Context, d *db.DB, name string) (int64, error) {
	result, err := d.ExecContext(ctx, d.Rebind(`DELETE FROM inventory WHERE snapshot_name = ?`), name)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshot: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}
	return n, nil
}

func scanNames(rows *sql.Rows) ([]string, error) {
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning snapshot name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanRows(rows *sql.Rows) ([]model.Row, error) {
	var result []model.Row
	for rows.Next() {
		var r model.Row
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.SnapshotName, &r.BatchID, &r.Article,
			&r.DisplayName, &r.GroupName, &r.Quantity, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
