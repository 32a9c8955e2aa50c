package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/user"
	"github.com/celsofranciscano/innotech/testutil"
)

func Test_landingApi(t *testing.T) {
	env, app := setup(t)

	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	student := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	cat := env.SeedCatalog(t)
	c := env.CreateCall(t, coord, testutil.NewCall("Feria 2024"))

	publish := func(d project.Detail, featured bool) project.Project {
		yes := true
		p, changed, err := env.ProjectSvc.Update(ctxBg, c.ID, d.ID, project.UpdateProject{IsPublished: &yes, IsFeatured: &featured}, testutil.SystemActor)
		require.NoError(t, err)
		require.True(t, changed)
		return p
	}

	np := testutil.NewProject("Biblioteca Virtual", cat)
	library := publish(env.CreateProject(t, c, student, np), true)

	np = testutil.NewProject("Comedor", cat)
	np.Tags = []string{"salud"}
	canteen := publish(env.CreateProject(t, c, student, np), false)

	hidden := env.CreateProject(t, c, student, testutil.NewProject("Secreto", cat))

	notFound := marchallObj(t, httpErr{Error: project.ErrNotFound.Error()})

	runHTTPTests(t, app, []httpTest{
		{name: "published projects", path: "/api/landing/projects", wantCode: http.StatusOK, wantData: marchallList(t, library, canteen)},
		{name: "featured projects", path: "/api/landing/projects?featured=true", wantCode: http.StatusOK, wantData: marchallList(t, library)},
		{name: "search by title", path: "/api/landing/projects?search=%20VIRTUAL%20", wantCode: http.StatusOK, wantData: marchallList(t, library)},
		{name: "search by tag", path: "/api/landing/projects?search=Salud", wantCode: http.StatusOK, wantData: marchallList(t, canteen)},
		{name: "unpublished project", path: "/api/landing/projects?search=secreto", wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "malformed filter", path: "/api/landing/projects?featured=lol", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `strconv.ParseBool: parsing "lol": invalid syntax`}),
		},
		{name: "unpublished detail", path: fmt.Sprintf("/api/landing/projects/%d", hidden.ID), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "unknown detail", path: "/api/landing/projects/999", wantCode: http.StatusNotFound, wantData: notFound},
	})

	t.Run("detail hides member emails", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, fmt.Sprintf("/api/landing/projects/%d", library.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d project.Detail
		decode(t, rec, &d)
		assert.Equal(t, library.ID, d.ID)
		assert.True(t, d.IsFeatured)
		require.Len(t, d.Members, 1)
		assert.Equal(t, "Luis", d.Members[0].FirstName)
		assert.Empty(t, d.Members[0].Email)
		assert.NotContains(t, rec.Body.String(), student.Email)
	})
}
