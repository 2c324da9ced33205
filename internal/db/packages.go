package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Package states a requested Python package can be in.
const (
	PackageStatusPending     = "pending"
	PackageStatusInstalled   = "installed"
	PackageStatusRejected    = "rejected"
	PackageStatusUninstalled = "uninstalled"
)

// ValidPackageStatus reports whether s is one of the known package states.
func ValidPackageStatus(s string) bool {
	switch s {
	case PackageStatusPending, PackageStatusInstalled, PackageStatusRejected, PackageStatusUninstalled:
		return true
	}
	return false
}

// Package is a Python package requested for the chat sandbox environment.
type Package struct {
	ID              int64      `json:"id"`
	PackageName     string     `json:"package_name"`
	AddedBy         string     `json:"added_by"`
	AddedAt         time.Time  `json:"added_at"`
	Status          string     `json:"status"`
	StatusNote      *string    `json:"status_note"`
	StatusUpdatedBy *string    `json:"status_updated_by,omitempty"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
}

// AuditEntry is one row of the package audit trail.
type AuditEntry struct {
	ID          string    `json:"id"`
	PackageID   *int64    `json:"package_id"`
	PackageName string    `json:"package_name"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	Detail      *string   `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListPackages returns the full package list, newest first. statuses filters
// to the given states when non-empty. The caller windows the result; a single
// query keeps the total and the page consistent.
func (db *DB) ListPackages(ctx context.Context, statuses []string) ([]Package, error) {
	query := `
		SELECT id, package_name, added_by, added_at, status, status_note,
		       status_updated_by, status_updated_at
		FROM python_packages
		WHERE cardinality($1::text[]) = 0 OR status = ANY($1::text[])
		ORDER BY added_at DESC, id DESC
	`
	if statuses == nil {
		statuses = []string{}
	}

	rows, err := db.conn.QueryContext(ctx, query, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.PackageName, &p.AddedBy, &p.AddedAt,
			&p.Status, &p.StatusNote, &p.StatusUpdatedBy, &p.StatusUpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// GetPackage retrieves a package by id.
func (db *DB) GetPackage(ctx context.Context, id int64) (*Package, error) {
	query := `
		SELECT id, package_name, added_by, added_at, status, status_note,
		       status_updated_by, status_updated_at
		FROM python_packages
		WHERE id = $1
	`
	var p Package
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.PackageName, &p.AddedBy, &p.AddedAt,
		&p.Status, &p.StatusNote, &p.StatusUpdatedBy, &p.StatusUpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &p, nil
}

// CreatePackage inserts a new pending package request and its audit entry in
// one transaction. Returns ErrPackageExists on a duplicate name.
func (db *DB) CreatePackage(ctx context.Context, name, addedBy string) (*Package, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO python_packages (package_name, added_by)
		VALUES ($1, $2)
		RETURNING id, package_name, added_by, added_at, status, status_note
	`
	var p Package
	err = tx.QueryRowContext(ctx, query, name, addedBy).Scan(
		&p.ID, &p.PackageName, &p.AddedBy, &p.AddedAt, &p.Status, &p.StatusNote,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrPackageExists
		}
		return nil, fmt.Errorf("failed to create package: %w", err)
	}

	if err := insertAudit(ctx, tx, &p.ID, p.PackageName, "added", addedBy, nil); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &p, nil
}

// DeletePackage removes a package and records the deletion. requestedBy must
// be the original adder unless admin is set.
func (db *DB) DeletePackage(ctx context.Context, id int64, requestedBy string, admin bool) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var name, addedBy string
	err = tx.QueryRowContext(ctx,
		`SELECT package_name, added_by FROM python_packages WHERE id = $1`, id,
	).Scan(&name, &addedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPackageNotFound
		}
		return fmt.Errorf("failed to get package: %w", err)
	}

	if addedBy != requestedBy && !admin {
		return ErrForbidden
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM python_packages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete package: %w", err)
	}

	if err := insertAudit(ctx, tx, &id, name, "deleted", requestedBy, nil); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdatePackageStatus sets a package's status, note, and updater, and records
// the transition in the audit log.
func (db *DB) UpdatePackageStatus(ctx context.Context, id int64, status string, note *string, updatedBy string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx,
		`SELECT package_name FROM python_packages WHERE id = $1`, id,
	).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPackageNotFound
		}
		return fmt.Errorf("failed to get package: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE python_packages
		SET status = $1, status_note = $2, status_updated_by = $3, status_updated_at = NOW()
		WHERE id = $4
	`, status, note, updatedBy, id)
	if err != nil {
		return fmt.Errorf("failed to update package status: %w", err)
	}

	if err := insertAudit(ctx, tx, &id, name, "status:"+status, updatedBy, note); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAuditLog returns the full audit trail, newest first. The caller windows
// the result.
func (db *DB) ListAuditLog(ctx context.Context) ([]AuditEntry, error) {
	query := `
		SELECT id, package_id, package_name, action, performed_by, detail, created_at
		FROM package_audit_log
		ORDER BY created_at DESC, id DESC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.PackageID, &e.PackageName, &e.Action,
			&e.PerformedBy, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}

// insertAudit appends one audit row inside the caller's transaction so the
// trail never records an action that was rolled back.
func insertAudit(ctx context.Context, tx *sql.Tx, packageID *int64, name, action, performedBy string, detail *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO package_audit_log (id, package_id, package_name, action, performed_by, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), packageID, name, action, performedBy, detail)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
