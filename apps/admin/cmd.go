package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/celsofranciscano/innotech/core/audit"
	"github.com/celsofranciscano/innotech/core/catalog"
	"github.com/celsofranciscano/innotech/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")

	// cliActor authors the history entries written from the command line.
	cliActor = audit.Actor{UserID: 0, UserRole: "Sistema", UserName: "admin"}
)

type commandLine struct {
	db         *sql.DB
	usrRepo    user.Repository
	catalogSvc *catalog.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  seed - create the privileges and the project statuses")
	fmt.Println("  adduser -email EMAIL -firstname NAME -lastname NAME [-role ROLE] - create or update a user; the password is prompted next")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserFirstName := addUserCmd.String("firstname", "", "The user's first name.")
	addUserLastName := addUserCmd.String("lastname", "", "The user's last name.")
	addUserRole := addUserCmd.String("role", string(user.RoleSuperAdmin), "The user's privilege.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		return cli.seed()

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		role, ok := user.ParseRole(*addUserRole)
		if *addUserEmail == "" || *addUserFirstName == "" || !ok {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserFirstName, *addUserLastName, *addUserEmail, pwd, role)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}
