package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"trimfit/internal/adapter/postgres"
	"trimfit/internal/app"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func promptPassword(c *cli.Context) (string, error) {
	if c.Bool("password-stdin") {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprint(c.App.ErrWriter, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func userCmd() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an account with an email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.BoolFlag{Name: "password-stdin", Usage: "read the password from stdin instead of the terminal"},
				},
				Action: createUser,
			},
		},
	}
}

func createUser(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	password, err := promptPassword(c)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	db, err := postgres.Open(c.Context, cfg.DatabaseDriver, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		return err
	}
	defer db.Close()

	res := app.NewAuthService(db, app.NewBcryptHasher()).Register(c.Context, app.RegisterInput{
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
		Email:     c.String("email"),
		Password:  password,
	})
	if !res.OK() {
		return errors.New(describeFailure(res))
	}
	fmt.Fprintf(c.App.Writer, "created user %s\n", res.UserID)
	return nil
}

// describeFailure renders a failed auth result for the terminal.
func describeFailure(res app.Result) string {
	msg := app.Message(res.Err)
	if len(res.Details) == 0 {
		if res.Cause != nil {
			msg += ": " + res.Cause.Error()
		}
		return msg
	}
	fields := make([]string, 0, len(res.Details))
	for f := range res.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		msg += fmt.Sprintf("; %s: %s", f, strings.Join(res.Details[f], ", "))
	}
	return msg
}
