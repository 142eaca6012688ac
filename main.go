package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pricepulse/pricepulse-cli/config"
	"github.com/pricepulse/pricepulse-cli/internal/api"
	"github.com/pricepulse/pricepulse-cli/internal/session"
)

var usage = dedent.Dedent(`
	pricepulse - track product prices from the command line

	Usage:
	  pricepulse <command> [arguments]

	Commands:
	  login            sign in and store the session
	  register         create an account
	  logout           sign out and clear the stored session
	  whoami           show the signed-in user
	  status           show session and scheduler status
	  reset-request    request a password reset code by email
	  reset-password   reset the password with an emailed code
	  products         list | add <url>... | create
	  scheduler        start | stop | status | check-now
	  watch            poll products and scheduler status

	Environment:
	  PRICEPULSE_API_URL    API base URL (default http://localhost:3001/api)
	  PRICEPULSE_TOKEN_KEY  passphrase encrypting the stored session (required)
	  PRICEPULSE_DB_PATH    session database path
`)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	tokenKey := os.Getenv("PRICEPULSE_TOKEN_KEY")
	if tokenKey == "" {
		log.Fatal().Msg("PRICEPULSE_TOKEN_KEY is not set")
	}

	dbPath := os.Getenv("PRICEPULSE_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(config.DataDir(), "pricepulse.db")
	}

	persister, err := session.NewSQLitePersister(dbPath, session.DeriveKey(tokenKey))
	if err != nil {
		log.Fatal().Err(err).Str("dbPath", dbPath).Msg("failed to open session database")
	}
	defer persister.Close()

	installationID, err := persister.InstallationID()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load installation id")
	}

	store := session.NewStore(persister)
	client, err := api.NewClient(api.ClientOpts{
		BaseURL:        os.Getenv("PRICEPULSE_API_URL"),
		Store:          store,
		Cookies:        persister,
		InstallationID: installationID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create API client")
	}

	binding := session.NewBinding(store, client)
	defer binding.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{store: store, client: client, binding: binding}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
