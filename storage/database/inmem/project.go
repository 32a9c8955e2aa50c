package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
)

type projectRepository struct {
	db *DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *DB) *projectRepository {
	return &projectRepository{db: db}
}

// withNames fills the classification names, as the SQL joins do.
func (repo projectRepository) withNames(p project.Project) project.Project {
	p.TypeName = repo.db.catalogs[catalog.KindProjectType][p.TypeID].Name
	p.CategoryName = repo.db.catalogs[catalog.KindCategory][p.CategoryID].Name
	p.StatusName = repo.db.catalogs[catalog.KindStatus][p.StatusID].Name
	return p
}

func (repo projectRepository) CreateProject(_ context.Context, p project.Project, members []project.Member, entry audit.Entry) (project.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = repo.db.nextID("projects")
	repo.db.projects[p.ID] = p

	stored := make([]project.Member, 0, len(members))
	for _, m := range members {
		m.ProjectID = p.ID
		stored = append(stored, m)
	}
	repo.db.members[p.ID] = stored
	repo.db.record(entry, p.ID)
	return repo.withNames(p), nil
}

func matchesSearch(p project.Project, search string) bool {
	s := strings.ToLower(search)
	if strings.Contains(strings.ToLower(p.Title), s) || strings.Contains(strings.ToLower(p.Summary), s) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.EqualFold(tag, search) {
			return true
		}
	}
	return false
}

func (repo projectRepository) QueryProjects(_ context.Context, filter project.QueryFilter) ([]project.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	projects := make([]project.Project, 0)
	for _, p := range repo.db.projects {
		if filter.CallID > 0 && p.CallID != filter.CallID {
			continue
		}
		if filter.PublishedOnly && !p.IsPublished {
			continue
		}
		if filter.FeaturedOnly && !p.IsFeatured {
			continue
		}
		if filter.Search != "" && !matchesSearch(p, filter.Search) {
			continue
		}
		projects = append(projects, repo.withNames(p))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID > projects[j].ID })
	return projects, nil
}

func (repo projectRepository) GetProject(_ context.Context, id int) (project.Project, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.projects[id]; ok {
		return repo.withNames(p), nil
	}
	return project.Project{}, project.ErrNotFound
}

func (repo projectRepository) QueryMembers(_ context.Context, projectIDs ...int) ([]project.Member, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	members := make([]project.Member, 0)
	for _, id := range projectIDs {
		for _, m := range repo.db.members[id] {
			if usr, ok := repo.db.users[m.UserID]; ok {
				m.FirstName, m.LastName, m.Email = usr.FirstName, usr.LastName, usr.Email
			}
			members = append(members, m)
		}
	}
	return members, nil
}

func (repo projectRepository) UpdateProject(_ context.Context, p project.Project, entry audit.Entry) (project.Project, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.projects[p.ID]
	if !ok {
		return project.Project{}, project.ErrNotFound
	}
	orig.StatusID = p.StatusID
	orig.IsPublished = p.IsPublished
	orig.IsFeatured = p.IsFeatured
	orig.UpdatedAt = p.UpdatedAt
	repo.db.projects[p.ID] = orig
	repo.db.record(entry, p.ID)
	return repo.withNames(orig), nil
}
