// Command authcli drives the session controller from a terminal. The session
// is persisted between runs in the configured storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logger"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
)

const usage = `usage: authcli <command> [flags]

commands:
  status                               show the restored session
  login    -email E -password P        sign in
  register -email E -password P -name N [-phone X] [-role user|vendor]
  google                               sign in with Google
  apple                                sign in with Apple
  logout                               sign out
  guest                                continue without an account
  role     user|vendor                 change the account role
  complete                             submit collected onboarding data
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		displayAppname(out, "authcli")
		fmt.Fprint(out, usage)
		return nil
	}

	_ = godotenv.Load()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	l := logger.New(logger.Options{Level: cfg.GetLogLevel(), Pretty: cfg.GetLogPretty(), Component: "authcli"})

	a, err := newApp(ctx, cfg, l, in, out)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			l.Warn().Err(err).Msg("could not close storage")
		}
	}()

	if err := a.controller.Restore(ctx); err != nil {
		return err
	}

	cmdErr := runCommand(ctx, a, args[0], args[1:])
	printSession(out, a.controller.Session())
	return cmdErr
}

func runCommand(ctx context.Context, a *app, name string, args []string) error {
	c := a.controller
	switch name {
	case "status":
		if s := c.Session(); !s.IsAuthenticated {
			if u, ok := c.CachedUser(ctx); ok {
				return fmt.Errorf("signed out (last user %s)", u.Email)
			}
		}
		return nil
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.Login(ctx, *email, *password)
	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		r := session.Registration{}
		fs.StringVar(&r.Email, "email", "", "account email")
		fs.StringVar(&r.Password, "password", "", "account password")
		fs.StringVar(&r.Name, "name", "", "display name")
		fs.StringVar(&r.Phone, "phone", "", "phone number")
		role := fs.String("role", string(users.RoleUser), "user or vendor")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if r.Name == "" {
			return errors.New("register requires -name")
		}
		parsed, err := users.ParseRole(*role)
		if err != nil {
			return err
		}
		r.Role = parsed
		return c.Register(ctx, r)
	case "google":
		return c.LoginWithGoogle(ctx)
	case "apple":
		return c.LoginWithApple(ctx)
	case "logout":
		return c.Logout(ctx)
	case "guest":
		return c.ContinueAsGuest(ctx)
	case "role":
		if len(args) != 1 {
			return errors.New("role requires exactly one argument")
		}
		role, err := users.ParseRole(args[0])
		if err != nil {
			return err
		}
		return c.UpdateUserRole(ctx, role)
	case "complete":
		return c.CompleteOnboarding(ctx)
	}
	return fmt.Errorf("unknown command %q", name)
}

func printSession(out io.Writer, s session.Session) {
	fmt.Fprintf(out, "destination: %s\n", navigation.Route(s))
	switch {
	case s.IsGuest():
		fmt.Fprintln(out, "signed in as guest")
	case s.User != nil:
		u := s.User
		fmt.Fprintf(out, "signed in as %s <%s> role=%s onboarded=%t\n", u.Name, u.Email, u.Role, u.IsOnboardingComplete)
	default:
		fmt.Fprintln(out, "signed out")
	}
	if s.Error != "" {
		fmt.Fprintf(out, "message: %s\n", s.Error)
	}
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(strings.ToUpper(appname), "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
