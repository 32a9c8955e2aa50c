package inmemdb

import (
	"context"
	"sort"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/review"
)

type reviewRepository struct {
	db *DB
}

var _ review.Repository = (*reviewRepository)(nil) // interface compliance check

func NewReviewRepository(db *DB) *reviewRepository {
	return &reviewRepository{db: db}
}

func (repo reviewRepository) QueryDetails(_ context.Context, filter review.DetailFilter) ([]review.Detail, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	projectIDs := make(map[int]bool, len(filter.ProjectIDs))
	for _, id := range filter.ProjectIDs {
		projectIDs[id] = true
	}

	details := make([]review.Detail, 0)
	for _, d := range repo.db.details {
		cr := repo.db.criteria[d.CriterionID]
		if filter.CallID > 0 && cr.CallID != filter.CallID {
			continue
		}
		if len(projectIDs) > 0 && !projectIDs[d.ProjectID] {
			continue
		}
		if filter.JurorAssignmentID > 0 && d.JurorAssignmentID != filter.JurorAssignmentID {
			continue
		}
		d.CriterionName, d.MaxScore = cr.Name, cr.MaxScore
		details = append(details, d)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].ID < details[j].ID })
	return details, nil
}

type scoringKey struct {
	projectID, criterionID, assignmentID int
}

// CreateDetails enforces the (project, criterion, juror assignment) uniqueness over the whole
// batch before writing anything.
func (repo reviewRepository) CreateDetails(_ context.Context, details []review.Detail, entry audit.Entry) ([]review.Detail, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	taken := make(map[scoringKey]bool, len(repo.db.details)+len(details))
	for _, d := range repo.db.details {
		taken[scoringKey{d.ProjectID, d.CriterionID, d.JurorAssignmentID}] = true
	}
	for _, d := range details {
		key := scoringKey{d.ProjectID, d.CriterionID, d.JurorAssignmentID}
		if taken[key] {
			return nil, review.ErrAlreadyScored
		}
		taken[key] = true
	}

	created := make([]review.Detail, 0, len(details))
	for _, d := range details {
		d.ID = repo.db.nextID("review_details")
		repo.db.details[d.ID] = d
		repo.db.record(entry, d.ID)
		created = append(created, d)
	}
	return created, nil
}
