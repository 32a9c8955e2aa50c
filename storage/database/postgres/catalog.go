package pgrepos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
)

var catalogTables = map[catalog.Kind]string{
	catalog.KindCategory:    "categories",
	catalog.KindProjectType: "project_types",
	catalog.KindStatus:      "project_statuses",
}

type catalogRepository struct {
	db core.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db core.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) table(kind catalog.Kind) (string, error) {
	if table, ok := catalogTables[kind]; ok {
		return table, nil
	}
	return "", pkgerrors.Errorf("unknown catalog %q", kind)
}

func (repo catalogRepository) CreateItem(ctx context.Context, kind catalog.Kind, item catalog.Item, entry audit.Entry) (catalog.Item, error) {
	table, err := repo.table(kind)
	if err != nil {
		return catalog.Item{}, err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (name, description, is_active, created_at, updated_at)
		VALUES (:name, :description, :is_active, :created_at, :updated_at)
		RETURNING id`, table)

	err = runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		id, err := insertReturningID(ctx, tx, q, item)
		if err != nil {
			if isUniqueViolation(err) {
				return catalog.ErrNameExists
			}
			return pkgerrors.Wrapf(err, "inserting into %s", table)
		}
		item.ID = id
		return insertEntry(ctx, tx, entry, id)
	})
	if err != nil {
		return catalog.Item{}, err
	}
	return item, nil
}

func (repo catalogRepository) QueryItems(ctx context.Context, kind catalog.Kind) ([]catalog.Item, error) {
	table, err := repo.table(kind)
	if err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0)
	if err = repo.db.SelectContext(ctx, &items, fmt.Sprintf(`SELECT * FROM %s ORDER BY name`, table)); err != nil {
		return nil, pkgerrors.Wrapf(err, "querying %s", table)
	}
	return items, nil
}

func (repo catalogRepository) getItem(ctx context.Context, kind catalog.Kind, column string, arg interface{}) (catalog.Item, error) {
	table, err := repo.table(kind)
	if err != nil {
		return catalog.Item{}, err
	}
	var item catalog.Item
	q := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, table, column)
	if err = repo.db.GetContext(ctx, &item, q, arg); err != nil {
		return catalog.Item{}, trapNoRowsErr(err, kind.NotFound(), "finding "+table)
	}
	return item, nil
}

func (repo catalogRepository) GetItem(ctx context.Context, kind catalog.Kind, id int) (catalog.Item, error) {
	return repo.getItem(ctx, kind, "id", id)
}

func (repo catalogRepository) GetItemByName(ctx context.Context, kind catalog.Kind, name string) (catalog.Item, error) {
	return repo.getItem(ctx, kind, "name", name)
}

func (repo catalogRepository) UpdateItem(ctx context.Context, kind catalog.Kind, item catalog.Item, entry audit.Entry) (catalog.Item, error) {
	table, err := repo.table(kind)
	if err != nil {
		return catalog.Item{}, err
	}
	q := fmt.Sprintf(`
		UPDATE %s
		SET name = :name, description = :description, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, table)

	err = runInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, q, item); err != nil {
			if isUniqueViolation(err) {
				return catalog.ErrNameExists
			}
			return pkgerrors.Wrapf(err, "updating %s", table)
		}
		return insertEntry(ctx, tx, entry, item.ID)
	})
	if err != nil {
		return catalog.Item{}, err
	}
	return item, nil
}
