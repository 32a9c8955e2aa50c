package pgrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/project"
)

const selectProjectsQuery = `
	SELECT p.*, t.name AS type_name, c.name AS category_name, s.name AS status_name
	FROM projects p
	JOIN project_types t ON t.id = p.type_id
	JOIN categories c ON c.id = p.category_id
	JOIN project_statuses s ON s.id = p.status_id`

type projectRepository struct {
	db core.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db core.DB) *projectRepository {
	return &projectRepository{db: db}
}

func (repo projectRepository) CreateProject(ctx context.Context, p project.Project, members []project.Member, entry audit.Entry) (project.Project, error) {
	q := `
		INSERT INTO projects (
			call_id, owner_id, type_id, category_id, status_id, title, summary, problem, solution, cover_image,
			repo_url, demo_url, video_url, technologies, tags, is_featured, is_published, created_at, updated_at
		) VALUES (
			:call_id, :owner_id, :type_id, :category_id, :status_id, :title, :summary, :problem, :solution, :cover_image,
			:repo_url, :demo_url, :video_url, :technologies, :tags, :is_featured, :is_published, :created_at, :updated_at
		) RETURNING id`
	memberQ := `
		INSERT INTO project_members (project_id, user_id, role, is_leader)
		VALUES (:project_id, :user_id, :role, :is_leader)`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, p)
		if err != nil {
			return pkgerrors.Wrap(err, "inserting project")
		}
		p.ID = id

		for _, m := range members {
			m.ProjectID = id
			if _, err = sqlx.NamedExecContext(ctx, tx, memberQ, m); err != nil {
				return pkgerrors.Wrap(err, "inserting project member")
			}
		}
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (repo projectRepository) QueryProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.CallID > 0 {
		where = append(where, "p.call_id = ?")
		args = append(args, filter.CallID)
	}
	if filter.PublishedOnly {
		where = append(where, "p.is_published")
	}
	if filter.FeaturedOnly {
		where = append(where, "p.is_featured")
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, "(p.title ILIKE ? OR p.summary ILIKE ? OR ? ILIKE ANY (p.tags))")
		args = append(args, val, val, filter.Search)
	}

	q := selectProjectsQuery
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY p.created_at DESC, p.id DESC"

	projects := make([]project.Project, 0)
	if err := repo.db.SelectContext(ctx, &projects, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying projects")
	}
	return projects, nil
}

func (repo projectRepository) GetProject(ctx context.Context, id int) (project.Project, error) {
	var p project.Project
	if err := repo.db.GetContext(ctx, &p, selectProjectsQuery+" WHERE p.id = $1", id); err != nil {
		return project.Project{}, trapNoRowsErr(err, project.ErrNotFound, "finding project")
	}
	return p, nil
}

func (repo projectRepository) QueryMembers(ctx context.Context, projectIDs ...int) ([]project.Member, error) {
	members := make([]project.Member, 0)
	if len(projectIDs) == 0 {
		return members, nil
	}
	q, args, err := sqlx.In(`
		SELECT m.project_id, m.user_id, m.role, m.is_leader, u.first_name, u.last_name, u.email
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id IN (?)
		ORDER BY m.project_id, m.is_leader DESC, u.last_name, u.first_name`, projectIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "binding project ids")
	}
	if err = repo.db.SelectContext(ctx, &members, repo.db.Rebind(q), args...); err != nil {
		return nil, pkgerrors.Wrap(err, "querying project members")
	}
	return members, nil
}

func (repo projectRepository) UpdateProject(ctx context.Context, p project.Project, entry audit.Entry) (project.Project, error) {
	q := `
		UPDATE projects
		SET status_id = :status_id, is_published = :is_published, is_featured = :is_featured, updated_at = :updated_at
		WHERE id = :id`

	err := runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, q, p); err != nil {
			return pkgerrors.Wrap(err, "updating project")
		}
		return insertEntry(ctx, tx, entry, p.ID)
	})
	if err != nil {
		return project.Project{}, err
	}
	return p, nil
}
