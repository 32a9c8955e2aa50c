package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/user"
)

// addUser updates or creates a user.User holding the role privilege.
func (cli *commandLine) addUser(firstName, lastName, email, pwd string, role user.Role) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	priv, err := cli.usrRepo.GetPrivilegeByName(ctx, role)
	if err != nil {
		if core.IsNotFound(err) {
			return errors.Errorf("privilege %q does not exist, run `seed` first", role)
		}
		return err
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr = user.User{
			FirstName:   core.CleanString(firstName),
			LastName:    core.CleanString(lastName),
			Email:       email,
			PrivilegeID: priv.ID,
			Role:        priv.Name,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr, audit.Created(audit.EntityUser, cliActor))
		return err
	}

	changes := make(audit.Changes)
	changes.Track("FK_privilege", usr.PrivilegeID, priv.ID)
	changes.Track("isActive", usr.IsActive, true)
	changes["password"] = audit.Change{Old: "********", New: "********"}
	usr.PrivilegeID = priv.ID
	usr.Role = priv.Name
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, audit.Updated(audit.EntityUser, usr.ID, cliActor, changes))
	return err
}

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	changes := audit.Changes{"password": {Old: "********", New: "********"}}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, audit.Updated(audit.EntityUser, usr.ID, cliActor, changes))
	return err
}
