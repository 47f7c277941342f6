package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/authapi"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/pkg/errors"
)

const passwordEnvVar = "AUTH_PASSWORD"

type terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func newLineReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}

func (t *terminal) prompt(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrapf(err, "reading %s", strings.ToLower(label))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type command func(ctx context.Context, s *client.Session, args []string, term *terminal) error

var commands = map[string]command{
	"login":    loginCmd,
	"register": registerCmd,
	"whoami":   whoamiCmd,
	"get":      getCmd,
	"refresh":  refreshCmd,
	"logout":   logoutCmd,
}

func loginCmd(ctx context.Context, s *client.Session, args []string, term *terminal) error {
	if len(args) != 1 {
		return errors.New("usage: login <email>")
	}
	password := os.Getenv(passwordEnvVar)
	if password == "" {
		var err error
		if password, err = term.prompt("Password"); err != nil {
			return err
		}
	}

	if err := s.Coordinator.Login(ctx, authapi.Credentials{Email: args[0], Password: password}); err != nil {
		return err
	}
	return whoamiCmd(ctx, s, nil, term)
}

func registerCmd(ctx context.Context, s *client.Session, args []string, term *terminal) error {
	if len(args) != 4 {
		return errors.New("usage: register <email> <first> <last> <phone>")
	}
	password, err := term.prompt("Password")
	if err != nil {
		return err
	}
	confirm, err := term.prompt("Confirm password")
	if err != nil {
		return err
	}

	err = s.Coordinator.Register(ctx, authapi.Registration{
		Email:           args[0],
		Password:        password,
		ConfirmPassword: confirm,
		FirstName:       args[1],
		LastName:        args[2],
		PhoneNumber:     args[3],
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(term.out, "Registered %s. You can now log in.\n", args[0])
	return nil
}

func whoamiCmd(_ context.Context, s *client.Session, _ []string, term *terminal) error {
	state := s.Coordinator.State()
	if !state.IsAuthenticated() {
		fmt.Fprintln(term.out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(term.out, "Logged in as %s (%s)", state.Identity.Subject, state.Identity.Role)
	if !state.Identity.ExpiresAt.IsZero() {
		fmt.Fprintf(term.out, ", access token expires %s", state.Identity.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(term.out)
	return nil
}

func getCmd(ctx context.Context, s *client.Session, args []string, term *terminal) error {
	if len(args) != 1 {
		return errors.New("usage: get <path>")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(args[0]), nil)
	if err != nil {
		return errors.Wrap(err, "[getCmd]")
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[getCmd]")
	}
	defer resp.Body.Close()

	if _, err := io.Copy(term.out, resp.Body); err != nil {
		return errors.Wrap(err, "[getCmd] read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("GET %s returned %d", args[0], resp.StatusCode)
	}
	return nil
}

func refreshCmd(ctx context.Context, s *client.Session, _ []string, term *terminal) error {
	if err := s.Coordinator.Refresh(ctx); err != nil {
		return err
	}
	return whoamiCmd(ctx, s, nil, term)
}

func logoutCmd(ctx context.Context, s *client.Session, _ []string, term *terminal) error {
	err := s.Coordinator.Logout(ctx)
	fmt.Fprintln(term.out, "Logged out.")
	return err
}
