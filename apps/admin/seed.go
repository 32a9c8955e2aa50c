package main

import (
	"context"
	"fmt"
	"time"

	"github.com/celsofranciscano/innotech/core"
	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
)

// seed creates the missing privileges and project statuses. Running it twice is a no-op.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	for _, role := range user.AllRoles {
		_, err := cli.usrRepo.GetPrivilegeByName(ctx, role)
		if err == nil {
			continue
		}
		if !core.IsNotFound(err) {
			return err
		}
		now := time.Now().UTC()
		priv := user.Privilege{Name: role, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if _, err = cli.usrRepo.CreatePrivilege(ctx, priv, audit.Created(audit.EntityPrivilege, cliActor)); err != nil {
			return err
		}
		fmt.Printf("privilege %q created\n", role)
	}

	for _, name := range catalog.AllStatuses {
		_, err := cli.catalogSvc.GetByName(ctx, catalog.KindStatus, name)
		if err == nil {
			continue
		}
		if !core.IsNotFound(err) {
			return err
		}
		if _, err = cli.catalogSvc.Create(ctx, catalog.KindStatus, catalog.NewItem{Name: name}, cliActor); err != nil {
			return err
		}
		fmt.Printf("status %q created\n", name)
	}
	return nil
}
