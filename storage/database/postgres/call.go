package pgrepos

import (
	"context"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
)

type callRepository struct {
	db core.DB
}

var _ call.Repository = (*callRepository)(nil) // interface compliance check

func NewCallRepository(db core.DB) *callRepository {
	return &callRepository{db: db}
}

func (repo callRepository) CreateCall(ctx context.Context, c call.Call, entry audit.Entry) (call.Call, error) {
	q := `
		INSERT INTO calls (
			owner_id, title, description, submission_open, submission_close, is_active, is_individual,
			allowed_project_types, allowed_categories, min_team_members, max_team_members, min_experience_level,
			min_tech_requirements, prizes, subject, semester, results_announcement, created_at, updated_at
		) VALUES (
			:owner_id, :title, :description, :submission_open, :submission_close, :is_active, :is_individual,
			:allowed_project_types, :allowed_categories, :min_team_members, :max_team_members, :min_experience_level,
			:min_tech_requirements, :prizes, :subject, :semester, :results_announcement, :created_at, :updated_at
		) RETURNING id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, c)
		if err != nil {
			return pkgerrors.Wrap(err, "inserting call")
		}
		c.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return call.Call{}, err
	}
	return c, nil
}

func (repo callRepository) QueryCalls(ctx context.Context, filter call.QueryFilter) ([]call.Call, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID > 0 {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.JurorID > 0 {
		where = append(where, "id IN (SELECT call_id FROM juror_assignments WHERE user_id = ?)")
		args = append(args, filter.JurorID)
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}

	q := `SELECT * FROM calls`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY submission_open DESC, id DESC"

	calls := make([]call.Call, 0)
	if err := repo.db.SelectContext(ctx, &calls, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying calls")
	}
	return calls, nil
}

func (repo callRepository) GetCall(ctx context.Context, id int) (call.Call, error) {
	var c call.Call
	if err := repo.db.GetContext(ctx, &c, `SELECT * FROM calls WHERE id = $1`, id); err != nil {
		return call.Call{}, trapNoRowsErr(err, call.ErrNotFound, "finding call")
	}
	return c, nil
}

func (repo callRepository) CreateCriterion(ctx context.Context, cr call.Criterion, entry audit.Entry) (call.Criterion, error) {
	q := `
		INSERT INTO criteria (call_id, name, description, max_score, created_at)
		VALUES (:call_id, :name, :description, :max_score, :created_at)
		RETURNING id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, cr)
		if err != nil {
			return pkgerrors.Wrap(err, "inserting criterion")
		}
		cr.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return call.Criterion{}, err
	}
	return cr, nil
}

func (repo callRepository) QueryCriteria(ctx context.Context, callID int) ([]call.Criterion, error) {
	criteria := make([]call.Criterion, 0)
	if err := repo.db.SelectContext(ctx, &criteria, `SELECT * FROM criteria WHERE call_id = $1 ORDER BY id`, callID); err != nil {
		return nil, pkgerrors.Wrap(err, "querying criteria")
	}
	return criteria, nil
}

func (repo callRepository) CreateJurorAssignment(ctx context.Context, ja call.JurorAssignment, entry audit.Entry) (call.JurorAssignment, error) {
	q := `
		INSERT INTO juror_assignments (call_id, user_id, notes, assigned_at)
		VALUES (:call_id, :user_id, :notes, :assigned_at)
		RETURNING id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, ja)
		if err != nil {
			if isUniqueViolation(err, "juror_assignments_call_user_key") {
				return call.ErrJurorExists
			}
			return pkgerrors.Wrap(err, "inserting juror assignment")
		}
		ja.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return call.JurorAssignment{}, err
	}
	return ja, nil
}

func (repo callRepository) QueryJurorAssignments(ctx context.Context, callID int) ([]call.JurorAssignment, error) {
	q := `
		SELECT ja.id, ja.call_id, ja.user_id, ja.notes, ja.assigned_at, u.first_name, u.last_name, u.email
		FROM juror_assignments ja
		JOIN users u ON u.id = ja.user_id
		WHERE ja.call_id = $1
		ORDER BY ja.id`

	assignments := make([]call.JurorAssignment, 0)
	if err := repo.db.SelectContext(ctx, &assignments, q, callID); err != nil {
		return nil, pkgerrors.Wrap(err, "querying juror assignments")
	}
	return assignments, nil
}
