// Package pgrepos implements the core repositories on PostgreSQL with sqlx.
package pgrepos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation, optionally on the named constraint.
func isUniqueViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if pkgerrors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return pkgerrors.Wrap(err, msg)
}

// runInTx runs fn in a transaction, rolled back if fn fails.
func runInTx(ctx context.Context, db core.DB, fn func(tx core.DBExecutor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				err = core.NewShutdownError(fmt.Sprintf("rolling back transaction: %v (cause: %v)", rbErr, err))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return pkgerrors.Wrap(tx.Commit(), "committing transaction")
}

// insertReturningID runs a named INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (int, error) {
	rows, err := sqlx.NamedQueryContext(ctx, exec, query, arg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var id int
	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, rows.Err()
}

const insertEntryQuery = `
	INSERT INTO history (entity_type, entity_id, action, user_id, user_role, user_name, changes, created_at)
	VALUES (:entity_type, :entity_id, :action, :user_id, :user_role, :user_name, :changes, :created_at)`

// insertEntry appends entry to the history of entityID.
func insertEntry(ctx context.Context, exec core.DBExecutor, entry audit.Entry, entityID int) error {
	entry.EntityID = entityID
	if entry.Changes == nil {
		entry.Changes = audit.Changes{}
	}
	if _, err := sqlx.NamedExecContext(ctx, exec, insertEntryQuery, entry); err != nil {
		return pkgerrors.Wrap(err, "inserting history entry")
	}
	return nil
}

type auditRepository struct {
	db core.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db core.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) QueryEntries(ctx context.Context, entityType string, entityID int) ([]audit.Entry, error) {
	entries := make([]audit.Entry, 0)
	q := `SELECT * FROM history WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &entries, q, entityType, entityID); err != nil {
		return nil, pkgerrors.Wrap(err, "querying history")
	}
	return entries, nil
}
