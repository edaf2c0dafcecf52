// Command glucoctl is the terminal shell: it logs in, shows the session state and
// watches the glucose series using the same session store as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glucoview/glucoview/internal/app"
	"github.com/glucoview/glucoview/internal/config"
	"github.com/glucoview/glucoview/internal/credentials"
	"github.com/glucoview/glucoview/internal/glucose"
	"github.com/glucoview/glucoview/internal/libre"
	"github.com/glucoview/glucoview/internal/refresh"
	"github.com/glucoview/glucoview/internal/sessions"
	"github.com/glucoview/glucoview/pkg/logger"
	"github.com/spf13/pflag"
)

const usage = `usage: glucoctl <command> [flags]

commands:
  login    exchange credentials and store the session
  logout   clear the stored session
  status   print the session verdict
  watch    refresh and print the glucose series until interrupted
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, rest := args[0], args[1:]

	fs := pflag.NewFlagSet("glucoctl "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error); defaults to LOG_LEVEL")
	var username, password *string
	var interval *time.Duration
	switch cmd {
	case "login":
		username = fs.StringP("username", "u", os.Getenv("LIBRE_USERNAME"), "LibreLinkUp e-mail")
		password = fs.StringP("password", "p", os.Getenv("LIBRE_PASSWORD"), "LibreLinkUp password")
	case "watch":
		interval = fs.DurationP("interval", "i", 0, "refresh interval; defaults to REFRESH_INTERVAL_MS")
	case "logout", "status":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	logger.Init(level)

	infra, err := app.SetupInfra(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "setup: %v\n", err)
		return 1
	}
	defer infra.Close(context.Background())

	store := sessions.NewStore(infra.Repo, cfg.Session.Key)
	client := libre.NewClient(cfg.Libre, nil)

	switch cmd {
	case "login":
		err = login(ctx, stdout, store, credentials.NewExchanger(client), *username, *password)
	case "logout":
		err = logout(ctx, stdout, store, sessions.NewRevocations(infra.Redis))
	case "status":
		err = status(ctx, stdout, store)
	case "watch":
		if *interval == 0 {
			*interval = cfg.Refresh.Interval
		}
		err = watch(ctx, stdout, store, glucose.NewFetcher(client, time.Local), *interval)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func login(ctx context.Context, out io.Writer, store *sessions.Store, ex *credentials.Exchanger, username, password string) error {
	v, s, err := store.Gate(ctx)
	if err != nil {
		return err
	}
	if v == sessions.Authenticated {
		fmt.Fprintf(out, "already logged in as %s (expires %s)\n", s.UserID, s.ExpiresAt().Format(time.RFC3339))
		return nil
	}
	s, err = ex.Exchange(ctx, username, password)
	if err != nil {
		if credentials.KindOf(err) == credentials.MissingCredentials {
			return errors.New("--username and --password (or LIBRE_USERNAME/LIBRE_PASSWORD) are required")
		}
		return err
	}
	if err := store.Put(ctx, s); err != nil {
		return err
	}
	fmt.Fprintf(out, "logged in as %s (expires %s)\n", s.UserID, s.ExpiresAt().Format(time.RFC3339))
	return nil
}

func logout(ctx context.Context, out io.Writer, store *sessions.Store, rev *sessions.Revocations) error {
	s, err := store.Get(ctx)
	if err != nil {
		return err
	}
	if s != nil {
		if err := rev.Revoke(ctx, s.Token, s.ExpiresAt()); err != nil {
			return err
		}
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "logged out")
	return nil
}

func status(ctx context.Context, out io.Writer, store *sessions.Store) error {
	v, s, err := store.Gate(ctx)
	if err != nil {
		return err
	}
	if v != sessions.Authenticated {
		fmt.Fprintln(out, v)
		return nil
	}
	fmt.Fprintf(out, "%s user=%s account=%s expires=%s\n", v, s.UserID, s.AccountID, s.ExpiresAt().Format(time.RFC3339))
	return nil
}

func watch(ctx context.Context, out io.Writer, store *sessions.Store, fetcher *glucose.Fetcher, interval time.Duration) error {
	views := make(chan refresh.View, 4)
	sched := refresh.New(store, fetcher,
		refresh.WithInterval(interval),
		refresh.OnUpdate(func(v refresh.View) {
			select {
			case views <- v:
			default:
			}
		}),
		refresh.OnSessionInvalid(func(ctx context.Context, rejected *sessions.Session) {
			if _, err := store.ClearToken(ctx, rejected.Token); err != nil {
				logger.Errorf("clear rejected session: %v", err)
			}
		}),
	)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-views:
			switch v.State {
			case refresh.Ready:
				render(out, v)
			case refresh.Failed:
				fmt.Fprintln(out, v.Error)
			case refresh.SessionInvalid:
				return fmt.Errorf("session %s, run `glucoctl login`", v.Verdict)
			}
		}
	}
}
