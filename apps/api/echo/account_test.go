package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celsofranciscano/innotech/core/call"
	"github.com/celsofranciscano/innotech/core/project"
	"github.com/celsofranciscano/innotech/core/user"
	"github.com/celsofranciscano/innotech/testutil"
)

func Test_accountApi_calls(t *testing.T) {
	env, app := setup(t)

	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	student := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)

	active := env.CreateCall(t, coord, testutil.NewCall("Feria 2024"))
	nc := testutil.NewCall("Feria 2023")
	inactive := false
	nc.IsActive = &inactive
	env.CreateCall(t, coord, nc)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/api/account/calls", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "students only", path: "/api/account/calls", token: getToken(t, env, coord), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "active calls", path: "/api/account/calls", token: getToken(t, env, student), wantCode: http.StatusOK, wantData: marchallList(t, active)},
	})
}

func Test_accountApi_submitProject(t *testing.T) {
	env, app := setup(t)

	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	student := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	mate := env.CreateUser(t, "Eva", "Condori", "eva@innotech.bo", "", user.RoleStudent, true)
	gone := env.CreateUser(t, "Juan", "Perez", "juan@innotech.bo", "", user.RoleStudent, false)
	cat := env.SeedCatalog(t)
	studentToken := getToken(t, env, student)

	team := env.CreateCall(t, coord, testutil.NewCall("Feria 2024"))

	nc := testutil.NewCall("Concurso individual")
	nc.IsIndividual = true
	individual := env.CreateCall(t, coord, nc)

	nc = testutil.NewCall("Duplas")
	two := 2
	nc.MinTeamMembers, nc.MaxTeamMembers = &two, &two
	pairs := env.CreateCall(t, coord, nc)

	nc = testutil.NewCall("Hardware")
	nc.AllowedProjectTypes = []string{"Hardware"}
	hardware := env.CreateCall(t, coord, nc)

	nc = testutil.NewCall("Cerrada")
	inactive := false
	nc.IsActive = &inactive
	closed := env.CreateCall(t, coord, nc)

	path := func(c call.Call) string {
		return fmt.Sprintf("/api/account/calls/%d/project", c.ID)
	}
	body := func(title string, members ...int) []byte {
		np := testutil.NewProject(title, cat)
		for _, id := range members {
			np.Members = append(np.Members, project.NewMember{UserID: id})
		}
		return marchallObj(t, np)
	}

	t.Run("team project", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(team), studentToken, body("Biblioteca", mate.ID, student.ID, mate.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var d project.Detail
		decode(t, rec, &d)
		assert.Equal(t, team.ID, d.CallID)
		assert.Equal(t, student.ID, d.OwnerID)
		assert.Equal(t, "Pendiente", d.StatusName)
		assert.Equal(t, "Software", d.TypeName)
		assert.Equal(t, "Tecnología", d.CategoryName)
		assert.False(t, d.IsPublished)
		require.Len(t, d.Members, 2)
		assert.Equal(t, student.ID, d.Members[0].UserID)
		assert.True(t, d.Members[0].IsLeader)
		assert.Equal(t, project.RoleLeader, d.Members[0].Role)
		assert.Equal(t, mate.ID, d.Members[1].UserID)
		assert.Equal(t, project.RoleMember, d.Members[1].Role)

		msgs := env.MailSvc.SentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "Proyecto enviado", msgs[0].Subject)
		assert.Equal(t, student.Email, msgs[0].To[0].Address)
	})

	t.Run("individual call ignores members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path(individual), studentToken, body("Solo", mate.ID, 999))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var d project.Detail
		decode(t, rec, &d)
		require.Len(t, d.Members, 1)
		assert.Equal(t, student.ID, d.Members[0].UserID)
	})

	t.Run("draft", func(t *testing.T) {
		env.MailSvc.Reset()
		np := testutil.NewProject("Borrador", cat)
		np.IsDraft = true
		req, rec := newAuthRequest(http.MethodPost, path(individual), studentToken, marchallObj(t, np))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var d project.Detail
		decode(t, rec, &d)
		assert.Equal(t, "Borrador", d.StatusName)
		assert.Empty(t, env.MailSvc.SentMessages())
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "students only", method: http.MethodPost, path: path(team), token: getToken(t, env, coord),
			body: body("Biblioteca"), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "missing fields", method: http.MethodPost, path: path(team), token: studentToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"title":        "este campo es obligatorio",
				"shortSummary": "este campo es obligatorio",
				"problem":      "este campo es obligatorio",
				"solution":     "este campo es obligatorio",
				"FK_type":      "este campo es obligatorio",
				"FK_category":  "este campo es obligatorio",
			}),
		},
		{
			name: "unknown call", method: http.MethodPost, path: "/api/account/calls/999/project", token: studentToken,
			body: body("Biblioteca"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: call.ErrNotFound.Error()}),
		},
		{
			name: "inactive call", method: http.MethodPost, path: path(closed), token: studentToken,
			body: body("Biblioteca"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: project.ErrCallInactive.Error()}),
		},
		{
			name: "team too small", method: http.MethodPost, path: path(pairs), token: studentToken,
			body: body("Biblioteca"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"members": "el equipo debe tener entre 2 y 2 integrantes"}),
		},
		{
			name: "unknown member", method: http.MethodPost, path: path(team), token: studentToken,
			body: body("Biblioteca", 999), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"members": fmt.Sprintf("%s (999)", project.ErrInvalidMember)}),
		},
		{
			name: "inactive member", method: http.MethodPost, path: path(team), token: studentToken,
			body: body("Biblioteca", gone.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"members": fmt.Sprintf("%s (%d)", project.ErrInvalidMember, gone.ID)}),
		},
		{
			name: "project type not allowed", method: http.MethodPost, path: path(hardware), token: studentToken,
			body: body("Biblioteca"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"FK_type": project.ErrTypeNotAllowed.Error()}),
		},
		{
			name: "unknown category", method: http.MethodPost, path: path(team), token: studentToken,
			body: []byte(fmt.Sprintf(
				`{"title": "x", "shortSummary": "x", "problem": "x", "solution": "x", "FK_type": %d, "FK_category": 999}`,
				cat.ProjectType.ID,
			)),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"FK_category": project.ErrInvalidReference.Error()}),
		},
	})
}
