package catalog

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
)

var (
	NowFunc = time.Now // mockable

	ErrNameExists = errors.New("ya existe un registro con este nombre")
)

type (
	Repository interface {
		CreateItem(ctx context.Context, kind Kind, item Item, entry audit.Entry) (Item, error)
		QueryItems(ctx context.Context, kind Kind) ([]Item, error)
		GetItem(ctx context.Context, kind Kind, id int) (Item, error)
		GetItemByName(ctx context.Context, kind Kind, name string) (Item, error)
		UpdateItem(ctx context.Context, kind Kind, item Item, entry audit.Entry) (Item, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) List(ctx context.Context, kind Kind) ([]Item, error) {
	return svc.repo.QueryItems(ctx, kind)
}

func (svc *Service) Get(ctx context.Context, kind Kind, id int) (Item, error) {
	return svc.repo.GetItem(ctx, kind, id)
}

func (svc *Service) GetByName(ctx context.Context, kind Kind, name string) (Item, error) {
	return svc.repo.GetItemByName(ctx, kind, name)
}

// Create fails with a ConflictError when the name is already taken.
func (svc *Service) Create(ctx context.Context, kind Kind, ni NewItem, actor audit.Actor) (Item, error) {
	now := NowFunc().UTC()
	item := Item{
		Name:        ni.Name,
		Description: ni.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item, err := svc.repo.CreateItem(ctx, kind, item, audit.Created(kind.EntityType(), actor))
	if err != nil {
		if pkgerrors.Cause(err) == ErrNameExists {
			return Item{}, core.NewConflictError("name", ErrNameExists)
		}
		return Item{}, pkgerrors.Wrapf(err, "creating %s item", kind)
	}
	return item, nil
}

// Update applies the fields present in ui. It reports changed=false, without writing, when nothing differs.
func (svc *Service) Update(ctx context.Context, kind Kind, id int, ui UpdateItem, actor audit.Actor) (Item, bool, error) {
	orig, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return Item{}, false, err
	}
	item := orig
	changes := make(audit.Changes)

	if ui.Name != nil {
		changes.Track("name", orig.Name, *ui.Name)
		item.Name = *ui.Name
	}
	if ui.Description != nil {
		changes.Track("description", orig.Description, *ui.Description)
		item.Description = *ui.Description
	}
	if ui.IsActive != nil {
		changes.Track("isActive", orig.IsActive, *ui.IsActive)
		item.IsActive = *ui.IsActive
	}

	if changes.IsEmpty() {
		return orig, false, nil
	}
	item.UpdatedAt = NowFunc().UTC()
	item, err = svc.repo.UpdateItem(ctx, kind, item, audit.Updated(kind.EntityType(), item.ID, actor, changes))
	if err != nil {
		if pkgerrors.Cause(err) == ErrNameExists {
			return Item{}, false, core.NewConflictError("name", ErrNameExists)
		}
		return Item{}, false, pkgerrors.Wrapf(err, "updating %s item", kind)
	}
	return item, true, nil
}
