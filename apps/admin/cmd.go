package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/evasensorial/eva/core/therapist"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	therapists therapist.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the embedded migrations")
	fmt.Println("  addtherapist -email EMAIL -name NAME [-superadmin] - create or update a therapist")
	fmt.Println("  resetpassword -email EMAIL - reset a therapist's password")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
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

	addTherapistCmd := flag.NewFlagSet("addtherapist", flag.ContinueOnError)
	addTherapistEmail := addTherapistCmd.String("email", "", "The therapist's email. The password will be prompted next.")
	addTherapistName := addTherapistCmd.String("name", "", "The therapist's full name.")
	addTherapistSuperAdmin := addTherapistCmd.Bool("superadmin", false, "Grant superadmin rights.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The therapist's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addtherapist":
		if err := addTherapistCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTherapistEmail == "" || *addTherapistName == "" {
			addTherapistCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addTherapistCmd.Usage()
			return errHelp
		}
		return cli.addTherapist(*addTherapistName, *addTherapistEmail, pwd, *addTherapistSuperAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
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
