package pgrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/review"
)

type reviewRepository struct {
	db core.DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db core.DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo reviewRepository) QueryDetails(ctx context.Context, filter review.DetailFilter) ([]review.Detail, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CallID > 0 {
		where = append(where, "c.call_id = ?")
		args = append(args, filter.CallID)
	}
	if len(filter.ProjectIDs) > 0 {
		where = append(where, "d.project_id IN (?)")
		args = append(args, filter.ProjectIDs)
	}
	if filter.JurorAssignmentID > 0 {
		where = append(where, "d.juror_assignment_id = ?")
		args = append(args, filter.JurorAssignmentID)
	}

	q := `
		SELECT d.*, c.name AS criterion_name, c.max_score
		FROM review_details d
		JOIN criteria c ON c.id = d.criterion_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY d.id"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "binding review details filter")
	}
	details := make([]review.Detail, 0)
	if err = repo.db.SelectContext(ctx, &details, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying review details")
	}
	return details, nil
}

// CreateDetails inserts the whole batch in one transaction. The scoring unique constraint
// turns a concurrent duplicate into review.ErrAlreadyScored and rolls every row back.
func (repo reviewRepository) CreateDetails(ctx context.Context, details []review.Detail, entry audit.Entry) ([]review.Detail, error) {
	q := `
		INSERT INTO review_details (project_id, criterion_id, juror_assignment_id, score, comments, created_at)
		VALUES (:project_id, :criterion_id, :juror_assignment_id, :score, :comments, :created_at)
		RETURNING id`

	created := make([]review.Detail, 0, len(details))
	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		for _, d := range details {
			id, err := insertReturningID(ctx, tx, q, d)
			if err != nil {
				if isUniqueViolation(err, "review_details_scoring_key") {
					return review.ErrAlreadyScored
				}
				return pkgerrors.Wrap(err, "inserting review detail")
			}
			d.ID = id
			if err = insertEntry(ctx, tx, entry, id); err != nil {
				return err
			}
			created = append(created, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
