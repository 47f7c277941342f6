package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/rs/zerolog/log"
)

var version = "dev"

type cliConfig struct {
	configFile string
	banner     bool
}

var errShowUsage = errors.New("show usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	if errors.Is(err, errShowUsage) {
		printUsage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		log.Err(err).Msg("authclient failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, command, rest, err := parseArgs(args)
	if err != nil {
		return err
	}
	if command == "version" {
		fmt.Fprintf(stdout, "authclient %s\n", version)
		return nil
	}
	if command == "help" {
		printUsage(stdout)
		return nil
	}

	c, err := config.Load(cfg.configFile)
	if err != nil {
		return err
	}
	if cfg.banner {
		displayAppname(stdout, c.GetAppName())
	}

	s, err := client.New(ctx, c, client.WithNavigator(transport.NavigatorFunc(func(path string) {
		fmt.Fprintf(stderr, "Session expired. Log in again (%s).\n", path)
	})))
	if err != nil {
		return err
	}
	defer s.Close()

	cmd, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command: %s", command)
	}
	return cmd(ctx, s, rest, &terminal{in: newLineReader(stdin), out: stdout})
}

func parseArgs(args []string) (cliConfig, string, []string, error) {
	cfg := cliConfig{banner: true}

	idx := 0
	for idx < len(args) {
		arg := args[idx]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		switch arg {
		case "--help", "-h":
			return cfg, "help", nil, nil
		case "--config", "-c":
			if idx+1 >= len(args) {
				return cfg, "", nil, fmt.Errorf("--config requires a value")
			}
			cfg.configFile = args[idx+1]
			idx += 2
		case "--quiet", "-q":
			cfg.banner = false
			idx++
		default:
			return cfg, "", nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if idx >= len(args) {
		return cfg, "", nil, errShowUsage
	}
	return cfg, args[idx], args[idx+1:], nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: authclient [--config FILE] [--quiet] <command> [args]

Commands:
  login <email>                              log in (password read from AUTH_PASSWORD or stdin)
  register <email> <first> <last> <phone>    create an account (password and confirmation read from stdin)
  whoami                                     show the current session
  get <path>                                 GET an API path with the session's token
  refresh                                    exchange the refresh token for a new pair
  logout                                     end the session
  version                                    print the version

Configuration comes from AUTH_* environment variables and an optional YAML
file (--config or AUTH_CLIENT_CONFIG).
`)
}

func displayAppname(w io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(w, myFigure.String())
}
