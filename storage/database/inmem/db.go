// Package inmemdb implements the core repositories in memory. One lock guards every table,
// so each repository write is atomic across tables like a SQL transaction.
package inmemdb

import (
	"context"
	"sync"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/review"
	"github.com/celsofranciscano/innotech/core/user"
)

type DB struct {
	mu  sync.RWMutex
	seq map[string]int

	privileges map[int]user.Privilege
	users      map[int]user.User
	devices    map[string]user.Device
	catalogs   map[catalog.Kind]map[int]catalog.Item
	calls      map[int]call.Call
	criteria   map[int]call.Criterion
	jurors     map[int]call.JurorAssignment
	projects   map[int]project.Project
	members    map[int][]project.Member // by project ID
	details    map[int]review.Detail
	history    []audit.Entry
}

func Open() *DB {
	db := &DB{
		seq:        make(map[string]int),
		privileges: make(map[int]user.Privilege),
		users:      make(map[int]user.User),
		devices:    make(map[string]user.Device),
		catalogs:   make(map[catalog.Kind]map[int]catalog.Item),
		calls:      make(map[int]call.Call),
		criteria:   make(map[int]call.Criterion),
		jurors:     make(map[int]call.JurorAssignment),
		projects:   make(map[int]project.Project),
		members:    make(map[int][]project.Member),
		details:    make(map[int]review.Detail),
	}
	for _, kind := range catalog.AllKinds {
		db.catalogs[kind] = make(map[int]catalog.Item)
	}
	return db
}

// nextID returns the next primary key of table. Callers hold the write lock.
func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}

// record appends entry to the history of entityID. Callers hold the write lock.
func (db *DB) record(entry audit.Entry, entityID int) {
	entry.ID = int64(db.nextID("history"))
	entry.EntityID = entityID
	db.history = append(db.history, entry)
}

// History returns every recorded entry, oldest first.
func (db *DB) History() []audit.Entry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	entries := make([]audit.Entry, len(db.history))
	copy(entries, db.history)
	return entries
}

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) QueryEntries(_ context.Context, entityType string, entityID int) ([]audit.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]audit.Entry, 0)
	for _, e := range repo.db.history {
		if e.EntityType == entityType && e.EntityID == entityID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
