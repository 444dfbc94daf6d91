package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/peergrade/core/assignment"
	"github.com/trezcool/peergrade/core/submission"
	"github.com/trezcool/peergrade/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	usrSvc *user.Service
	asgSvc *assignment.Service
	subSvc *submission.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL [-username USERNAME] [-role ROLE] - create a user; the password will be prompted")
	fmt.Println("  extend -assignment ID -student ID -due RFC3339 - grant (or replace) a deadline extension")
	fmt.Println("  regrade -assignment ID - recompute final grades for all of an assignment's submissions")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username (optional).")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleStudent, "One of STUDENT, INSTRUCTOR or ADMIN.")

	extendCmd := flag.NewFlagSet("extend", flag.ExitOnError)
	extendAsg := extendCmd.String("assignment", "", "The assignment id.")
	extendStudent := extendCmd.String("student", "", "The student id.")
	extendDue := extendCmd.String("due", "", "The new due date, RFC3339 (e.g. 2021-05-30T23:59:00Z).")

	regradeCmd := flag.NewFlagSet("regrade", flag.ExitOnError)
	regradeAsg := regradeCmd.String("assignment", "", "The assignment id.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, *addUserRole, string(pwd))

	case "extend":
		if err := extendCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *extendAsg == "" || *extendStudent == "" || *extendDue == "" {
			extendCmd.Usage()
			return errHelp
		}
		due, err := time.Parse(time.RFC3339, *extendDue)
		if err != nil {
			return err
		}
		return cli.extend(*extendAsg, *extendStudent, due)

	case "regrade":
		if err := regradeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *regradeAsg == "" {
			regradeCmd.Usage()
			return errHelp
		}
		return cli.regrade(*regradeAsg)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	default:
		cli.printUsage()
		return errHelp
	}
}
