package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/user"
	"github.com/celsofranciscano/innotech/testutil"
)

func strPtr(s string) *string { return &s }

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   user.Role
		wantOk bool
	}{
		{in: "Estudiante", want: user.RoleStudent, wantOk: true},
		{in: "  jurado ", want: user.RoleJuror, wantOk: true},
		{in: "SUPERADMINISTRADOR", want: user.RoleSuperAdmin, wantOk: true},
		{in: "Rey"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := user.ParseRole(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleSet_Allows(t *testing.T) {
	set := user.NewRoleSet(user.ReviewerRoles...)
	assert.True(t, set.Allows(user.RoleJuror))
	assert.True(t, set.Allows(user.RoleSuperAdmin))
	assert.False(t, set.Allows(user.RoleStudent))
	assert.False(t, user.NewRoleSet().Allows(user.RoleGuest))
	assert.True(t, user.NewRoleSet().Allows(user.RoleSuperAdmin))
}

func TestNewUser_Validate(t *testing.T) {
	env := testutil.NewEnv()
	newUser := func(pwd, confirm string) user.NewUser {
		return user.NewUser{
			FirstName:       "Luis",
			LastName:        "Mamani",
			Email:           " LUIS@innotech.bo ",
			PrivilegeID:     1,
			Password:        pwd,
			PasswordConfirm: confirm,
		}
	}

	tests := []struct {
		name    string
		nu      user.NewUser
		wantTag string
	}{
		{name: "valid", nu: newUser("Innotech#2024", "Innotech#2024")},
		{name: "too short", nu: newUser("abc12", "abc12"), wantTag: "pwdminlen"},
		{name: "whitespace", nu: newUser("Inno tech#24", "Inno tech#24"), wantTag: "pwdnospace"},
		{name: "numeric", nu: newUser("12345678", "12345678"), wantTag: "pwdnotallnum"},
		{name: "too similar", nu: newUser("luismamani", "luismamani"), wantTag: "pwdtoosim"},
		{name: "mismatch", nu: newUser("Innotech#2024", "Innotech#2025"), wantTag: "eqfield"},
		{
			name:    "bad email",
			nu:      user.NewUser{FirstName: "Luis", LastName: "Mamani", Email: "luis", PrivilegeID: 1, Password: "Innotech#2024", PasswordConfirm: "Innotech#2024"},
			wantTag: "email",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(env.Validate)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, "luis@innotech.bo", nu.Email)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), "want ValidationErrors, got %v", err)
			require.Len(t, vErrs, 1)
			assert.Equal(t, tt.wantTag, vErrs[0].Tag())
		})
	}
}

func TestUpdateUser_Validate(t *testing.T) {
	env := testutil.NewEnv()

	uu := user.UpdateUser{FirstName: strPtr("  Luis ")}
	require.NoError(t, uu.Validate(env.Validate))
	assert.Equal(t, "Luis", *uu.FirstName)

	uu = user.UpdateUser{Password: "Nueva#Clave1"}
	var vErrs validator.ValidationErrors
	require.True(t, errors.As(uu.Validate(env.Validate), &vErrs))
	assert.Equal(t, "required_with", vErrs[0].Tag())

	uu = user.UpdateUser{FirstName: strPtr(" "), Password: "Nueva#Clave1", PasswordConfirm: "Nueva#Clave1"}
	require.True(t, errors.As(uu.Validate(env.Validate), &vErrs))
	assert.Equal(t, "notblank", vErrs[0].Tag())
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	luis := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "Innotech#2024", user.RoleStudent, true)
	env.CreateUser(t, "Juan", "Perez", "juan@innotech.bo", "Innotech#2024", user.RoleStudent, false)

	laptop := user.DeviceInfo{Type: "desktop", Brand: "Lenovo", Model: "T14", OS: "Linux", Browser: "Firefox", IP: "10.0.0.1"}
	phone := user.DeviceInfo{Type: "mobile", Brand: "Samsung", Model: "A54", OS: "Android", Browser: "Chrome"}

	t.Run("bad credentials", func(t *testing.T) {
		_, _, err := env.UserSvc.Authenticate(ctx, "luis@innotech.bo", "Innotech#2025", laptop)
		assert.Equal(t, user.ErrInvalidCredentials, err)
		_, _, err = env.UserSvc.Authenticate(ctx, "nadie@innotech.bo", "Innotech#2024", laptop)
		assert.Equal(t, user.ErrInvalidCredentials, err)
		_, _, err = env.UserSvc.Authenticate(ctx, "juan@innotech.bo", "Innotech#2024", laptop)
		assert.Equal(t, user.ErrAccountDeactivated, err)
	})

	usr, first, err := env.UserSvc.Authenticate(ctx, " LUIS@innotech.bo", "Innotech#2024", laptop)
	require.NoError(t, err)
	assert.Equal(t, luis.ID, usr.ID)
	assert.True(t, usr.LastLogin.Valid)
	assert.True(t, first.IsActive)

	t.Run("same device is reused", func(t *testing.T) {
		again := laptop
		again.Browser = "FIREFOX "
		again.IP = "10.0.0.2"
		_, dev, err := env.UserSvc.Authenticate(ctx, "luis@innotech.bo", "Innotech#2024", again)
		require.NoError(t, err)
		assert.Equal(t, first.ID, dev.ID)
		assert.Equal(t, "10.0.0.2", dev.IP)
	})

	_, second, err := env.UserSvc.Authenticate(ctx, "luis@innotech.bo", "Innotech#2024", phone)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	devices, err := env.UserSvc.Devices(ctx, luis.ID)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	t.Run("logout", func(t *testing.T) {
		require.NoError(t, env.UserSvc.Logout(ctx, luis.ID+1, first.ID)) // someone else's session
		_, err := env.UserSvc.CheckSession(ctx, luis.ID, first.ID)
		require.NoError(t, err)

		require.NoError(t, env.UserSvc.Logout(ctx, luis.ID, first.ID))
		_, err = env.UserSvc.CheckSession(ctx, luis.ID, first.ID)
		assert.Equal(t, user.ErrSessionClosed, err)
		require.NoError(t, env.UserSvc.Logout(ctx, luis.ID, first.ID))
		require.NoError(t, env.UserSvc.Logout(ctx, luis.ID, "unknown"))

		_, err = env.UserSvc.CheckSession(ctx, luis.ID, second.ID)
		assert.NoError(t, err)
		_, err = env.UserSvc.CheckSession(ctx, luis.ID, "")
		assert.Equal(t, user.ErrSessionClosed, err)

		users, err := env.UserSvc.Query(ctx, &user.QueryFilter{}, nil)
		require.NoError(t, err)
		online := make(map[int]bool)
		for _, u := range users {
			online[u.ID] = u.IsOnline
		}
		assert.True(t, online[luis.ID])
	})

	t.Run("login reopens a closed session", func(t *testing.T) {
		_, dev, err := env.UserSvc.Authenticate(ctx, "luis@innotech.bo", "Innotech#2024", laptop)
		require.NoError(t, err)
		assert.Equal(t, first.ID, dev.ID)
		assert.False(t, dev.LogoutAt.Valid)
		_, err = env.UserSvc.CheckSession(ctx, luis.ID, first.ID)
		assert.NoError(t, err)
	})

	_, err = env.UserSvc.Devices(ctx, 999)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv()
	luis := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "Innotech#2024", user.RoleStudent, true)
	env.CreateUser(t, "Ana", "Quispe", "ana@innotech.bo", "", user.RoleCoordinator, true)
	juror := env.Privilege(t, user.RoleJuror)
	before := len(env.DB.History())

	_, changed, err := env.UserSvc.Update(ctx, luis.ID, user.UpdateUser{FirstName: strPtr("Luis"), Password: "Innotech#2024"}, testutil.SystemActor)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, env.DB.History(), before)

	_, _, err = env.UserSvc.Update(ctx, luis.ID, user.UpdateUser{Email: strPtr("ana@innotech.bo")}, testutil.SystemActor)
	var conflict *core.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "email", conflict.Field)

	bogus := 999
	_, _, err = env.UserSvc.Update(ctx, luis.ID, user.UpdateUser{PrivilegeID: &bogus}, testutil.SystemActor)
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, user.ErrInvalidPrivilegeRef, vErr.Err)

	usr, changed, err := env.UserSvc.Update(ctx, luis.ID, user.UpdateUser{PrivilegeID: &juror.ID, Password: "Nueva#Clave1"}, testutil.SystemActor)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, user.RoleJuror, usr.Role)
	assert.NoError(t, usr.CheckPassword("Nueva#Clave1"))

	history := env.DB.History()
	require.Len(t, history, before+1)
	last := history[len(history)-1]
	assert.Equal(t, "********", last.Changes["password"].New)
}
