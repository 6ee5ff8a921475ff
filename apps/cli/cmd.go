package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/elimu/core/session"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/webapi"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errLoginFailed = errors.New("sign in failed")
	errNoSession   = errors.New("not signed in")
)

type commandLine struct {
	store *session.Store
	api   *webapi.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  login -email EMAIL     - sign in; the password will be prompted next")
	fmt.Println("  logout                 - sign out and clear the saved session")
	fmt.Println("  whoami                 - show the signed-in profile")
	fmt.Println("  enroll -course ID      - enroll the signed-in user on a course")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ExitOnError)
	loginEmail := loginCmd.String("email", "", "The account email. The password will be prompted next.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	enrollCourse := enrollCmd.Int("course", 0, "The course ID to enroll on.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginEmail, string(pwd))
	case "logout":
		cli.store.Logout(ctx)
		fmt.Println("Signed out.")
		return nil
	case "whoami":
		return cli.whoami()
	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollCourse <= 0 {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.enroll(ctx, *enrollCourse)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) login(ctx context.Context, email, pwd string) error {
	if ok := cli.store.Login(ctx, user.Credentials{Email: email, Password: pwd}); !ok {
		return errLoginFailed
	}
	st := cli.store.Current()
	fmt.Printf("Signed in as %s (%s)\n", st.User.Username, st.User.Role)
	return nil
}

func (cli *commandLine) whoami() error {
	st := cli.store.Current()
	if !st.Authenticated() || st.User == nil {
		return errNoSession
	}
	usr := st.User
	fmt.Printf("%s <%s>\n", usr.Username, usr.Email)
	fmt.Printf("role: %s", usr.Role)
	if usr.MentorTagged() {
		fmt.Print(" (mentor)")
	}
	fmt.Println()
	fmt.Printf("exp: %d | coins: %d | rank: %d\n", usr.EXP, usr.Coins, usr.Rank)
	return nil
}

func (cli *commandLine) enroll(ctx context.Context, courseID int) error {
	st := cli.store.Current()
	if !st.Authenticated() {
		return errNoSession
	}
	if err := cli.api.Enroll(ctx, st.Token, courseID); err != nil {
		return err
	}
	fmt.Println("Enrolled on course " + strconv.Itoa(courseID) + ".")
	return nil
}
