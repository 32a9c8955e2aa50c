package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
	"github.com/celsofranciscano/innotech/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv()
	return &commandLine{
		usrRepo:    env.UserRepo,
		catalogSvc: env.CatalogSvc,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	if err == nil {
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
		return
	}
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var ran []string
	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "awards", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
	assert.Len(t, ran, 11)
}

func Test_commandLine_seed(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	// partially seeded
	env.Privilege(t, user.RoleStudent)

	for i := 0; i < 2; i++ {
		require.NoError(t, cli.run([]string{"admin", "seed"}))

		privileges, err := env.UserRepo.QueryPrivileges(ctx)
		require.NoError(t, err)
		assert.Len(t, privileges, len(user.AllRoles))

		statuses, err := env.CatalogSvc.List(ctx, catalog.KindStatus)
		require.NoError(t, err)
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, s.Name)
		}
		assert.ElementsMatch(t, catalog.AllStatuses, names)
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()
	require.NoError(t, cli.run([]string{"admin", "seed"}))

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, extra: extra{pwd: "Innotech#2024"}, wantErr: errHelp},
		{name: "no first name", args: []string{"adduser", "-email", "root@innotech.bo"}, extra: extra{pwd: "Innotech#2024"}, wantErr: errHelp},
		{name: "invalid role", args: []string{"adduser", "-email", "root@innotech.bo", "-firstname", "Root", "-role", "Rey"}, extra: extra{pwd: "Innotech#2024"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "root@innotech.bo", "-firstname", "Root"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-email", " ROOT@innotech.bo", "-firstname", "Root", "-lastname", "Admin"}, extra: extra{pwd: "Innotech#2024"}},
		{name: "update", args: []string{"adduser", "-email", "root@innotech.bo", "-firstname", "Root", "-role", "coordinador"}, extra: extra{pwd: "Innotech#2025"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := env.UserRepo.GetUserByEmail(ctx, "root@innotech.bo")
	require.NoError(t, err)
	assert.Equal(t, "Root", usr.FirstName)
	assert.Equal(t, "Admin", usr.LastName)
	assert.Equal(t, user.RoleCoordinator, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Innotech#2025"))

	trail, err := env.AuditSvc.Trail(ctx, audit.EntityUser, usr.ID)
	require.NoError(t, err)
	require.NotNil(t, trail.Create)
	assert.Equal(t, "admin", trail.Create.UserName)
	assert.Len(t, trail.Updates, 1)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := env.CreateUser(t, "Luis", "Mamani", "luis@innotech.bo", "Innotech#2024", user.RoleStudent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@innotech.bo"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " LUIS@innotech.bo"}, extra: extra{pwd: "Innotech#2025"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd := ""
		if e, ok := tt.extra.(extra); ok {
			pwd = e.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := env.UserRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			}
		})
	}
}
