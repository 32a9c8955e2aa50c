package inmemdb

import (
	"context"
	"sort"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/call"
)

type callRepository struct {
	db *DB
}

var _ call.Repository = (*callRepository)(nil) // interface compliance check

func NewCallRepository(db *DB) *callRepository {
	return &callRepository{db: db}
}

func (repo callRepository) CreateCall(_ context.Context, c call.Call, entry audit.Entry) (call.Call, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.ID = repo.db.nextID("calls")
	repo.db.calls[c.ID] = c
	repo.db.record(entry, c.ID)
	return c, nil
}

func (repo callRepository) isJuror(callID, userID int) bool {
	for _, ja := range repo.db.jurors {
		if ja.CallID == callID && ja.UserID == userID {
			return true
		}
	}
	return false
}

func (repo callRepository) QueryCalls(_ context.Context, filter call.QueryFilter) ([]call.Call, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	calls := make([]call.Call, 0)
	for _, c := range repo.db.calls {
		if filter.OwnerID > 0 && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.JurorID > 0 && !repo.isJuror(c.ID, filter.JurorID) {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		calls = append(calls, c)
	}
	sort.Slice(calls, func(i, j int) bool {
		if calls[i].SubmissionOpen.Equal(calls[j].SubmissionOpen) {
			return calls[i].ID > calls[j].ID
		}
		return calls[i].SubmissionOpen.After(calls[j].SubmissionOpen)
	})
	return calls, nil
}

func (repo callRepository) GetCall(_ context.Context, id int) (call.Call, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.calls[id]; ok {
		return c, nil
	}
	return call.Call{}, call.ErrNotFound
}

func (repo callRepository) CreateCriterion(_ context.Context, cr call.Criterion, entry audit.Entry) (call.Criterion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.calls[cr.CallID]; !ok {
		return call.Criterion{}, call.ErrNotFound
	}
	cr.ID = repo.db.nextID("criteria")
	repo.db.criteria[cr.ID] = cr
	repo.db.record(entry, cr.ID)
	return cr, nil
}

func (repo callRepository) QueryCriteria(_ context.Context, callID int) ([]call.Criterion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	criteria := make([]call.Criterion, 0)
	for _, cr := range repo.db.criteria {
		if cr.CallID == callID {
			criteria = append(criteria, cr)
		}
	}
	sort.Slice(criteria, func(i, j int) bool { return criteria[i].ID < criteria[j].ID })
	return criteria, nil
}

func (repo callRepository) CreateJurorAssignment(_ context.Context, ja call.JurorAssignment, entry audit.Entry) (call.JurorAssignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.calls[ja.CallID]; !ok {
		return call.JurorAssignment{}, call.ErrNotFound
	}
	if repo.isJuror(ja.CallID, ja.UserID) {
		return call.JurorAssignment{}, call.ErrJurorExists
	}
	ja.ID = repo.db.nextID("juror_assignments")
	repo.db.jurors[ja.ID] = ja
	repo.db.record(entry, ja.ID)
	return ja, nil
}

func (repo callRepository) QueryJurorAssignments(_ context.Context, callID int) ([]call.JurorAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]call.JurorAssignment, 0)
	for _, ja := range repo.db.jurors {
		if ja.CallID != callID {
			continue
		}
		if usr, ok := repo.db.users[ja.UserID]; ok {
			ja.FirstName, ja.LastName, ja.Email = usr.FirstName, usr.LastName, usr.Email
		}
		assignments = append(assignments, ja)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}
