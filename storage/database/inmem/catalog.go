package inmemdb

import (
	"context"
	"sort"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo catalogRepository) nameTaken(kind catalog.Kind, name string, excludedID int) bool {
	for _, item := range repo.db.catalogs[kind] {
		if item.Name == name && item.ID != excludedID {
			return true
		}
	}
	return false
}

func (repo catalogRepository) CreateItem(_ context.Context, kind catalog.Kind, item catalog.Item, entry audit.Entry) (catalog.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.nameTaken(kind, item.Name, 0) {
		return catalog.Item{}, catalog.ErrNameExists
	}
	item.ID = repo.db.nextID(string(kind))
	repo.db.catalogs[kind][item.ID] = item
	repo.db.record(entry, item.ID)
	return item, nil
}

func (repo catalogRepository) QueryItems(_ context.Context, kind catalog.Kind) ([]catalog.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	items := make([]catalog.Item, 0, len(repo.db.catalogs[kind]))
	for _, item := range repo.db.catalogs[kind] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (repo catalogRepository) GetItem(_ context.Context, kind catalog.Kind, id int) (catalog.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if item, ok := repo.db.catalogs[kind][id]; ok {
		return item, nil
	}
	return catalog.Item{}, kind.NotFound()
}

func (repo catalogRepository) GetItemByName(_ context.Context, kind catalog.Kind, name string) (catalog.Item, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, item := range repo.db.catalogs[kind] {
		if item.Name == name {
			return item, nil
		}
	}
	return catalog.Item{}, kind.NotFound()
}

func (repo catalogRepository) UpdateItem(_ context.Context, kind catalog.Kind, item catalog.Item, entry audit.Entry) (catalog.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.catalogs[kind][item.ID]; !ok {
		return catalog.Item{}, kind.NotFound()
	}
	if repo.nameTaken(kind, item.Name, item.ID) {
		return catalog.Item{}, catalog.ErrNameExists
	}
	repo.db.catalogs[kind][item.ID] = item
	repo.db.record(entry, item.ID)
	return item, nil
}
