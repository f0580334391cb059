package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/tasklet/internal/secretstore"
)

func (r *runner) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "store the account password and check it against the service",
		Description: "Prompts for the password on a terminal, otherwise reads one line from stdin.\n" +
			"The password is kept in the configured auth storage (file or keyring).",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-verify", Usage: "store the password without requesting a token"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, flush, err := r.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer flush()

			password, err := r.readPassword()
			if err != nil {
				return err
			}

			if err := a.Secrets().Write(ctx, password); err != nil {
				if errors.Is(err, secretstore.ErrReadOnly) {
					return fmt.Errorf("storing password: %w (set auth.storage to file or keyring)", err)
				}
				return fmt.Errorf("storing password: %w", err)
			}

			if !cmd.Bool("no-verify") {
				if _, err := a.Credential().Token(ctx); err != nil {
					return fmt.Errorf("password stored but rejected: %w", err)
				}
			}

			fmt.Fprintln(r.Out, "ok")
			return nil
		},
	}
}

// readPassword prompts without echo when stdin is a terminal and reads a
// single line otherwise.
func (r *runner) readPassword() (string, error) {
	if f, ok := r.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(r.ErrOut, "Password: ")
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.ErrOut)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return checkPassword(string(secret))
	}

	if r.In == nil {
		return "", errors.New("reading password: no input")
	}
	line, err := bufio.NewReader(r.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}
