// Package audit records who changed what on every mutable entity.
//
// Entries live in an append-only history table keyed by (entity type, entity id) and are
// written in the same transaction as the mutation they describe. The `{create, updates}`
// trail exposed by the API is rebuilt from those entries.
package audit

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Entity types
const (
	EntityCall          = "call"
	EntityCriterion     = "criterion"
	EntityJuror         = "juror_assignment"
	EntityProject       = "project"
	EntityReviewDetail  = "review_detail"
	EntityCategory      = "category"
	EntityProjectType   = "project_type"
	EntityProjectStatus = "project_status"
	EntityPrivilege     = "privilege"
	EntityUser          = "user"
)

var NowFunc = time.Now // mockable

// Actor is the authenticated user performing a mutation.
type Actor struct {
	UserID   int    `json:"userId"`
	UserRole string `json:"userRole"`
	UserName string `json:"userName"`
}

type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Changes maps a field name to its old and new values.
type Changes map[string]Change

// Track records field only when old and new differ.
func (c Changes) Track(field string, old, new interface{}) {
	if !reflect.DeepEqual(old, new) {
		c[field] = Change{Old: old, New: new}
	}
}

func (c Changes) IsEmpty() bool { return len(c) == 0 }

// Fields returns the changed field names, sorted.
func (c Changes) Fields() []string {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (c Changes) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

func (c *Changes) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("audit.Changes: cannot scan %T", src)
	}
	return json.Unmarshal(data, c)
}

// Entry is one row of the history table.
type Entry struct {
	ID         int64     `db:"id" json:"-"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   int       `db:"entity_id" json:"entityId"`
	Action     string    `db:"action" json:"action"`
	UserID     int       `db:"user_id" json:"userId"`
	UserRole   string    `db:"user_role" json:"userRole"`
	UserName   string    `db:"user_name" json:"userName"`
	Changes    Changes   `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
}

func newEntry(entityType string, entityID int, action string, actor Actor, changes Changes) Entry {
	return Entry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     actor.UserID,
		UserRole:   actor.UserRole,
		UserName:   actor.UserName,
		Changes:    changes,
		CreatedAt:  NowFunc().UTC(),
	}
}

// Created returns the "create" entry of a new entity. The entity ID is set by the repository on insert.
func Created(entityType string, actor Actor) Entry {
	return newEntry(entityType, 0, ActionCreate, actor, nil)
}

// Updated returns the "update" entry of an existing entity.
func Updated(entityType string, entityID int, actor Actor, changes Changes) Entry {
	return newEntry(entityType, entityID, ActionUpdate, actor, changes)
}

type (
	Record struct {
		UserID    int       `json:"userId"`
		UserRole  string    `json:"userRole"`
		UserName  string    `json:"userName"`
		Timestamp time.Time `json:"timestamp"`
	}

	UpdateRecord struct {
		Record
		Changes Changes `json:"changes"`
	}

	// Trail is the `{create, updates}` history of one entity.
	Trail struct {
		Create  *Record        `json:"create"`
		Updates []UpdateRecord `json:"updates"`
	}
)

// BuildTrail folds entries (in any order) into a Trail, updates sorted oldest first.
func BuildTrail(entries []Entry) Trail {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	trail := Trail{Updates: make([]UpdateRecord, 0)}
	for _, e := range sorted {
		rec := Record{UserID: e.UserID, UserRole: e.UserRole, UserName: e.UserName, Timestamp: e.CreatedAt}
		switch e.Action {
		case ActionCreate:
			r := rec
			trail.Create = &r
		case ActionUpdate:
			trail.Updates = append(trail.Updates, UpdateRecord{Record: rec, Changes: e.Changes})
		}
	}
	return trail
}

type Repository interface {
	QueryEntries(ctx context.Context, entityType string, entityID int) ([]Entry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Trail returns the history of the given entity.
func (svc *Service) Trail(ctx context.Context, entityType string, entityID int) (Trail, error) {
	entries, err := svc.repo.QueryEntries(ctx, entityType, entityID)
	if err != nil {
		return Trail{}, errors.Wrap(err, "querying history entries")
	}
	return BuildTrail(entries), nil
}
