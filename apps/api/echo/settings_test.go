package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/celsofranciscano/innotech/apps/api/echo"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
)

var noChanges = map[string]string{"message": "no hay cambios para actualizar"}

func Test_catalogApi(t *testing.T) {
	env, app := setup(t)

	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	student := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "", user.RoleStudent, true)
	admin := env.CreateUser(t, "Root", "Admin", "root@innotech.bo", "", user.RoleSuperAdmin, true)
	coordToken := getToken(t, env, coord)

	var health catalog.Item
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/settings/calls/categories", coordToken, []byte(`{"name": "  Salud ", "description": "Proyectos de salud"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &health)
		assert.Equal(t, "Salud", health.Name)
		assert.True(t, health.IsActive)
	})

	statuses := env.SeedCatalog(t).Statuses
	itemPath := fmt.Sprintf("/api/settings/calls/categories/%d", health.ID)

	runHTTPTests(t, app, []httpTest{
		{name: "auth required", path: "/api/settings/calls/categories", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "students denied", path: "/api/settings/calls/categories", token: getToken(t, env, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "unknown kind", path: "/api/settings/calls/lol", token: coordToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "no encontrado"})},
		{
			name: "superadmin lists statuses", path: "/api/settings/calls/status", token: getToken(t, env, admin), wantCode: http.StatusOK,
			wantData: marchallList(t,
				statuses[catalog.StatusDraft], statuses[catalog.StatusPending], statuses[catalog.StatusInReview],
				statuses[catalog.StatusApproved], statuses[catalog.StatusRejected],
			),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/settings/calls/categories", token: coordToken,
			body: []byte(`{"name": "Salud"}`), wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: catalog.ErrNameExists.Error()}),
		},
		{
			name: "same name on another kind", method: http.MethodPost, path: "/api/settings/calls/types", token: coordToken,
			body: []byte(`{"name": "Salud"}`), wantCode: http.StatusCreated,
		},
		{
			name: "blank name", method: http.MethodPost, path: "/api/settings/calls/types", token: coordToken,
			body: []byte(`{"name": " "}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"name": "este campo es obligatorio"}),
		},
		{
			name: "no changes", method: http.MethodPut, path: itemPath, token: coordToken,
			body: []byte(`{"name": "Salud", "description": "Proyectos de salud"}`), wantCode: http.StatusOK, wantData: marchallObj(t, noChanges),
		},
		{
			name: "rename to a taken name", method: http.MethodPut, path: itemPath, token: coordToken,
			body: []byte(`{"name": "Tecnología"}`), wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: catalog.ErrNameExists.Error()}),
		},
		{
			name: "unknown item", path: "/api/settings/calls/categories/999", token: coordToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: catalog.KindCategory.NotFound().Error()}),
		},
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, itemPath, coordToken, []byte(`{"description": "Salud pública", "isActive": false}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var item catalog.Item
		decode(t, rec, &item)
		assert.Equal(t, "Salud", item.Name)
		assert.Equal(t, "Salud pública", item.Description)
		assert.False(t, item.IsActive)
	})

	t.Run("history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, itemPath, coordToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var detail ItemDetail
		decode(t, rec, &detail)
		require.NotNil(t, detail.History.Create)
		assert.Equal(t, coord.ID, detail.History.Create.UserID)
		assert.Equal(t, "Ana Quispe", detail.History.Create.UserName)
		// the no-op update left no trace
		require.Len(t, detail.History.Updates, 1)
		assert.Equal(t, []string{"description", "isActive"}, detail.History.Updates[0].Changes.Fields())
	})
}

func Test_userApi_privileges(t *testing.T) {
	env, app := setup(t)

	admin := env.CreateUser(t, "Root", "Admin", "root@innotech.bo", "", user.RoleSuperAdmin, true)
	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	adminToken := getToken(t, env, admin)

	runHTTPTests(t, app, []httpTest{
		{name: "superadmin only", path: "/api/settings/privileges", token: getToken(t, env, coord), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "list", path: "/api/settings/privileges", token: adminToken, wantCode: http.StatusOK,
			wantData: marchallList(t, env.Privilege(t, user.RoleSuperAdmin), env.Privilege(t, user.RoleCoordinator)),
		},
		{
			name: "invalid name", method: http.MethodPost, path: "/api/settings/privileges", token: adminToken,
			body: []byte(`{"privilege": "Rey"}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"privilege": "privilegio inválido"}),
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/api/settings/privileges", token: adminToken,
			body: []byte(`{"privilege": "coordinador"}`), wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: user.ErrPrivilegeExists.Error()}),
		},
	})

	var guest user.Privilege
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/settings/privileges", adminToken, []byte(`{"privilege": " invitado ", "description": "Solo lectura"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &guest)
		assert.Equal(t, user.RoleGuest, guest.Name)
		assert.True(t, guest.IsActive)
	})

	path := fmt.Sprintf("/api/settings/privileges/%d", guest.ID)
	runHTTPTests(t, app, []httpTest{
		{
			name: "no changes", method: http.MethodPut, path: path, token: adminToken,
			body: []byte(`{"privilege": "Invitado", "description": "Solo lectura"}`), wantCode: http.StatusOK, wantData: marchallObj(t, noChanges),
		},
		{name: "deactivate", method: http.MethodPut, path: path, token: adminToken, body: []byte(`{"isActive": false}`), wantCode: http.StatusOK},
		{
			name: "unknown privilege", path: "/api/settings/privileges/999", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrPrivilegeNotFound.Error()}),
		},
	})

	t.Run("history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var detail PrivilegeDetail
		decode(t, rec, &detail)
		assert.False(t, detail.IsActive)
		require.NotNil(t, detail.History.Create)
		assert.Equal(t, admin.ID, detail.History.Create.UserID)
		require.Len(t, detail.History.Updates, 1)
		assert.Equal(t, []string{"isActive"}, detail.History.Updates[0].Changes.Fields())
	})
}

func Test_userApi_users(t *testing.T) {
	env, app := setup(t)

	admin := env.CreateUser(t, "Root", "Admin", "root@innotech.bo", "", user.RoleSuperAdmin, true)
	coord := env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	adminToken := getToken(t, env, admin)
	studentPriv := env.Privilege(t, user.RoleStudent)

	newUser := func(email, pwd, confirm string, privID int) []byte {
		return marchallObj(t, map[string]interface{}{
			"firstName":       "Luis",
			"lastName":        "Mamani",
			"email":           email,
			"FK_privilege":    privID,
			"password":        pwd,
			"passwordConfirm": confirm,
		})
	}

	runHTTPTests(t, app, []httpTest{
		{name: "superadmin only", path: "/api/settings/users", token: getToken(t, env, coord), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "duplicate email", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser(" ANA@innotech.bo", "Innotech#2024", "Innotech#2024", studentPriv.ID), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: user.ErrEmailExists.Error()}),
		},
		{
			name: "numeric password", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser("luis@innotech.bo", "12345678", "12345678", studentPriv.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "la contraseña no puede ser solo numérica"}),
		},
		{
			name: "short password", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser("luis@innotech.bo", "Inno#1", "Inno#1", studentPriv.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "la contraseña debe tener al menos 8 caracteres"}),
		},
		{
			name: "password too similar to the email", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser("luismamani@innotech.bo", "luismamani", "luismamani", studentPriv.ID), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "la contraseña es demasiado parecida a los datos del usuario"}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser("luis@innotech.bo", "Innotech#2024", "Innotech#2025", studentPriv.ID), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown privilege", method: http.MethodPost, path: "/api/settings/users", token: adminToken,
			body: newUser("luis@innotech.bo", "Innotech#2024", "Innotech#2024", 999), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"FK_privilege": user.ErrInvalidPrivilegeRef.Error()}),
		},
	})

	var student user.User
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/settings/users", adminToken, newUser(" LUIS@innotech.bo ", "Innotech#2024", "Innotech#2024", studentPriv.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &student)
		assert.Equal(t, "luis@innotech.bo", student.Email)
		assert.Equal(t, user.RoleStudent, student.Role)
		assert.True(t, student.IsActive)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	path := fmt.Sprintf("/api/settings/users/%d", student.ID)
	runHTTPTests(t, app, []httpTest{
		{
			name: "no changes", method: http.MethodPut, path: path, token: adminToken,
			body: []byte(`{"firstName": "Luis", "password": "Innotech#2024", "passwordConfirm": "Innotech#2024"}`),
			wantCode: http.StatusOK, wantData: marchallObj(t, noChanges),
		},
		{
			name: "email taken", method: http.MethodPut, path: path, token: adminToken, body: []byte(`{"email": "ana@innotech.bo"}`),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: user.ErrEmailExists.Error()}),
		},
		{
			name: "cannot deactivate oneself", method: http.MethodPut, path: fmt.Sprintf("/api/settings/users/%d", admin.ID), token: adminToken,
			body: []byte(`{"isActive": false}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "promote", method: http.MethodPut, path: path, token: adminToken,
			body:     marchallObj(t, map[string]interface{}{"FK_privilege": env.Privilege(t, user.RoleJuror).ID, "lastName": "Mamani Cruz"}),
			wantCode: http.StatusOK,
		},
		{
			name: "unknown user", path: "/api/settings/users/999", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		},
		{
			name: "filter by privilege", path: fmt.Sprintf("/api/settings/users?privilege=%d", env.Privilege(t, user.RoleCoordinator).ID), token: adminToken,
			wantCode: http.StatusOK, wantData: marchallList(t, coord),
		},
	})

	t.Run("history", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var detail UserDetail
		decode(t, rec, &detail)
		assert.Equal(t, user.RoleJuror, detail.Role)
		assert.Equal(t, "Mamani Cruz", detail.LastName)
		require.NotNil(t, detail.History.Create)
		require.Len(t, detail.History.Updates, 1)
		assert.Equal(t, []string{"FK_privilege", "lastName"}, detail.History.Updates[0].Changes.Fields())
	})
}

func Test_userApi_devices(t *testing.T) {
	env, app := setup(t)

	admin := env.CreateUser(t, "Root", "Admin", "root@innotech.bo", "", user.RoleSuperAdmin, true)
	usr := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "Innotech#2024", user.RoleStudent, true)

	_, laptop, err := env.UserSvc.Authenticate(ctxBg, usr.Email, "Innotech#2024", user.DeviceInfo{Type: "desktop", OS: "Linux", Browser: "Firefox"})
	require.NoError(t, err)
	_, phone, err := env.UserSvc.Authenticate(ctxBg, usr.Email, "Innotech#2024", user.DeviceInfo{Type: "mobile", Brand: "Samsung", OS: "Android"})
	require.NoError(t, err)
	require.NoError(t, env.UserSvc.Logout(ctxBg, usr.ID, laptop.ID))

	req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/settings/users/%d/devices", usr.ID), getToken(t, env, admin))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var devices []user.Device
	decode(t, rec, &devices)
	require.Len(t, devices, 2)
	byID := map[string]user.Device{devices[0].ID: devices[0], devices[1].ID: devices[1]}
	assert.True(t, byID[phone.ID].IsActive)
	assert.False(t, byID[laptop.ID].IsActive)
	assert.True(t, byID[laptop.ID].LogoutAt.Valid)

	t.Run("online flag", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/settings/users?search=luis", getToken(t, env, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var users []user.User
		decode(t, rec, &users)
		require.Len(t, users, 1)
		assert.True(t, users[0].IsOnline)
	})
}
