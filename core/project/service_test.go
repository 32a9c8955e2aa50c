package project_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/user"
	"github.com/celsofranciscano/innotech/testutil"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	ana := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	luis := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	rosa := env.CreateUser(t, "Rosa", "Choque", "rosa@innotech.bo", "", user.RoleStudent, true)
	juan := env.CreateUser(t, "Juan", "Perez", "juan@innotech.bo", "", user.RoleStudent, false)
	cat := env.SeedCatalog(t)

	hardware, err := env.CatalogSvc.Create(ctx, catalog.KindProjectType, catalog.NewItem{Name: "Hardware"}, testutil.SystemActor)
	require.NoError(t, err)
	retired, err := env.CatalogSvc.Create(ctx, catalog.KindCategory, catalog.NewItem{Name: "Retirada"}, testutil.SystemActor)
	require.NoError(t, err)
	inactive := false
	_, _, err = env.CatalogSvc.Update(ctx, catalog.KindCategory, retired.ID, catalog.UpdateItem{IsActive: &inactive}, testutil.SystemActor)
	require.NoError(t, err)

	nc := testutil.NewCall("Feria")
	nc.AllowedProjectTypes = []string{cat.ProjectType.Name}
	c := env.CreateCall(t, ana, nc)

	withMembers := func(np project.NewProject, ids ...int) project.NewProject {
		for _, id := range ids {
			np.Members = append(np.Members, project.NewMember{UserID: id})
		}
		return np
	}
	withType := func(np project.NewProject, id int) project.NewProject {
		np.TypeID = id
		return np
	}
	withCategory := func(np project.NewProject, id int) project.NewProject {
		np.CategoryID = id
		return np
	}

	tests := []struct {
		name      string
		np        project.NewProject
		wantErr   error
		wantField string
	}{
		{name: "type not allowed", np: withType(testutil.NewProject("Robot", cat), hardware.ID), wantErr: project.ErrTypeNotAllowed, wantField: "FK_type"},
		{name: "unknown type", np: withType(testutil.NewProject("Robot", cat), 999), wantErr: project.ErrInvalidReference, wantField: "FK_type"},
		{name: "inactive category", np: withCategory(testutil.NewProject("Robot", cat), retired.ID), wantErr: project.ErrInvalidReference, wantField: "FK_category"},
		{name: "inactive member", np: withMembers(testutil.NewProject("Robot", cat), rosa.ID, juan.ID), wantErr: project.ErrInvalidMember, wantField: "members"},
		{name: "unknown member", np: withMembers(testutil.NewProject("Robot", cat), rosa.ID, ana.ID, 1000), wantErr: project.ErrInvalidMember, wantField: "members"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ProjectSvc.Create(ctx, c, tt.np, luis, testutil.SystemActor)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "want a ValidationError, got %v", err)
			assert.Equal(t, tt.wantErr, vErr.Err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}

	projects, err := env.ProjectSvc.ListForCall(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)

	t.Run("leader listed once", func(t *testing.T) {
		d, err := env.ProjectSvc.Create(ctx, c, withMembers(testutil.NewProject("Robot", cat), luis.ID, rosa.ID, rosa.ID), luis, testutil.SystemActor)
		require.NoError(t, err)
		require.Len(t, d.Members, 2)
		assert.True(t, d.Members[0].IsLeader)
		assert.Equal(t, luis.ID, d.Members[0].UserID)
		assert.Equal(t, project.RoleMember, d.Members[1].Role)
		assert.Equal(t, catalog.StatusPending, d.StatusName)

		got, err := env.ProjectSvc.GetForCall(ctx, c.ID, d.ID)
		require.NoError(t, err)
		assert.Len(t, got.Members, 2)
	})

	t.Run("team too big", func(t *testing.T) {
		nc := testutil.NewCall("Parejas")
		maxTeam := 2
		nc.MaxTeamMembers = &maxTeam
		pairs := env.CreateCall(t, ana, nc)
		_, err := env.ProjectSvc.Create(ctx, pairs, withMembers(testutil.NewProject("Robot", cat), rosa.ID, ana.ID), luis, testutil.SystemActor)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "el equipo debe tener entre 1 y 2 integrantes", vErr.Fields[0].Error)
	})

	t.Run("inactive call", func(t *testing.T) {
		off := false
		nc := testutil.NewCall("Cerrada")
		nc.IsActive = &off
		closed := env.CreateCall(t, ana, nc)
		_, err := env.ProjectSvc.Create(ctx, closed, testutil.NewProject("Robot", cat), luis, testutil.SystemActor)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, project.ErrCallInactive, vErr.Err)
	})
}

func TestService_Create_statusNotSeeded(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	ana := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	luis := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	c := env.CreateCall(t, ana, testutil.NewCall("Feria"))

	category, err := env.CatalogSvc.Create(ctx, catalog.KindCategory, catalog.NewItem{Name: "Tecnología"}, testutil.SystemActor)
	require.NoError(t, err)
	projType, err := env.CatalogSvc.Create(ctx, catalog.KindProjectType, catalog.NewItem{Name: "Software"}, testutil.SystemActor)
	require.NoError(t, err)
	cat := testutil.Catalog{Category: category, ProjectType: projType}

	_, err = env.ProjectSvc.Create(ctx, c, testutil.NewProject("Robot", cat), luis, testutil.SystemActor)
	require.Error(t, err)
	var vErr *core.ValidationError
	assert.False(t, errors.As(err, &vErr))
	assert.False(t, core.IsNotFound(err))
}

func TestService_GetForCall(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	ana := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	luis := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	cat := env.SeedCatalog(t)
	feria := env.CreateCall(t, ana, testutil.NewCall("Feria"))
	hackaton := env.CreateCall(t, ana, testutil.NewCall("Hackatón"))
	p := env.CreateProject(t, feria, luis, testutil.NewProject("Robot", cat))

	_, err := env.ProjectSvc.GetForCall(ctx, hackaton.ID, p.ID)
	assert.Equal(t, project.ErrNotFound, err)
	_, err = env.ProjectSvc.GetForCall(ctx, feria.ID, 999)
	assert.Equal(t, project.ErrNotFound, err)

	published := true
	_, _, err = env.ProjectSvc.Update(ctx, hackaton.ID, p.ID, project.UpdateProject{IsPublished: &published}, testutil.SystemActor)
	assert.Equal(t, project.ErrNotFound, err)

	_, err = env.ProjectSvc.PublishedDetail(ctx, p.ID)
	assert.Equal(t, project.ErrNotFound, err)

	_, changed, err := env.ProjectSvc.Update(ctx, feria.ID, p.ID, project.UpdateProject{IsPublished: &published}, testutil.SystemActor)
	require.NoError(t, err)
	assert.True(t, changed)

	d, err := env.ProjectSvc.PublishedDetail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, d.Members, 1)
	assert.Empty(t, d.Members[0].Email)
}
