// Command provision manages accounts in the credential store.
//
//	provision create -username lind -authorities read -roles ROLE_USER
//	provision grant -username lind -authorities read,write
//	provision lock|unlock|enable|disable -username lind
//	provision failures -username lind -since 24h
//	provision list
//	provision hash
//
// The password is read from -password or PROVISION_PASSWORD.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bfyxzls/webSecurity/config"
	"github.com/bfyxzls/webSecurity/internal/auth"
	"github.com/bfyxzls/webSecurity/internal/observability"
	"github.com/bfyxzls/webSecurity/models"
	"github.com/bfyxzls/webSecurity/repositories/postgres"
	"github.com/bfyxzls/webSecurity/services"
)

type accountManager interface {
	Provision(ctx context.Context, req services.ProvisionRequest) (*models.Account, error)
	UpdateGrants(ctx context.Context, username string, update services.GrantUpdate) (*models.Account, error)
	LoginHistory(ctx context.Context, username string, since time.Time, limit int) (*services.LoginHistory, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
}

// opener returns an account manager and a function releasing it.
type opener func(ctx context.Context) (accountManager, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, openDatabase))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "create":
		return runCreate(ctx, args[1:], stdout, stderr, open)
	case "grant":
		return runGrant(ctx, args[1:], stdout, stderr, open)
	case "lock", "unlock", "enable", "disable":
		return runStatus(ctx, args[0], args[1:], stdout, stderr, open)
	case "failures":
		return runFailures(ctx, args[1:], stdout, stderr, open)
	case "list":
		return runList(ctx, args[1:], stdout, stderr, open)
	case "hash":
		return runHash(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: provision <create|grant|lock|unlock|enable|disable|failures|list|hash> [flags]")
}

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var username, password, authorities, roles string
	var disabled, locked bool
	fs.StringVar(&username, "username", "", "account username")
	fs.StringVar(&password, "password", "", "account password (default $PROVISION_PASSWORD)")
	fs.StringVar(&authorities, "authorities", "", "comma separated authorities")
	fs.StringVar(&roles, "roles", "", "comma separated roles, prefix included")
	fs.BoolVar(&disabled, "disabled", false, "create the account disabled")
	fs.BoolVar(&locked, "locked", false, "create the account locked")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if password == "" {
		password = os.Getenv("PROVISION_PASSWORD")
	}

	mgr, closeFn, err := open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open account store: %v\n", err)
		return 1
	}
	defer closeFn()

	account, err := mgr.Provision(ctx, services.ProvisionRequest{
		Username:    username,
		Password:    password,
		Authorities: splitList(authorities),
		Roles:       splitList(roles),
		Disabled:    disabled,
		Locked:      locked,
	})
	if err != nil {
		return reportError(stderr, "create account", err)
	}

	return writeJSON(stdout, stderr, account)
}

// runGrant replaces the authorities and/or roles of an account. Only the
// lists passed on the command line change.
func runGrant(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	fs := flag.NewFlagSet("grant", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var username, authorities, roles string
	fs.StringVar(&username, "username", "", "account username")
	fs.StringVar(&authorities, "authorities", "", "comma separated authorities, replaces the current set")
	fs.StringVar(&roles, "roles", "", "comma separated roles, replaces the current set")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var update services.GrantUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "authorities":
			update.Authorities = nonNil(splitList(authorities))
		case "roles":
			update.Roles = nonNil(splitList(roles))
		}
	})
	if username == "" || (update.Authorities == nil && update.Roles == nil) {
		fmt.Fprintln(stderr, "grant requires -username and at least one of -authorities or -roles")
		return 2
	}

	return applyUpdate(ctx, username, update, stdout, stderr, open)
}

// runStatus flips the locked or enabled flag of an account.
func runStatus(ctx context.Context, command string, args []string, stdout, stderr io.Writer, open opener) int {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var username string
	fs.StringVar(&username, "username", "", "account username")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if username == "" {
		fmt.Fprintf(stderr, "%s requires -username\n", command)
		return 2
	}

	var update services.GrantUpdate
	switch command {
	case "lock":
		update.Locked = boolPtr(true)
	case "unlock":
		update.Locked = boolPtr(false)
	case "enable":
		update.Enabled = boolPtr(true)
	case "disable":
		update.Enabled = boolPtr(false)
	}

	return applyUpdate(ctx, username, update, stdout, stderr, open)
}

func applyUpdate(ctx context.Context, username string, update services.GrantUpdate, stdout, stderr io.Writer, open opener) int {
	mgr, closeFn, err := open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open account store: %v\n", err)
		return 1
	}
	defer closeFn()

	account, err := mgr.UpdateGrants(ctx, username, update)
	if err != nil {
		return reportError(stderr, "update account", err)
	}
	return writeJSON(stdout, stderr, account)
}

// runFailures prints the failed login count for an account over a window,
// along with its most recent attempts.
func runFailures(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	fs := flag.NewFlagSet("failures", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var username string
	var window time.Duration
	var limit int
	fs.StringVar(&username, "username", "", "account username")
	fs.DurationVar(&window, "since", 24*time.Hour, "how far back to count failures")
	fs.IntVar(&limit, "limit", 20, "recent attempts to show")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if username == "" {
		fmt.Fprintln(stderr, "failures requires -username")
		return 2
	}

	mgr, closeFn, err := open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open account store: %v\n", err)
		return 1
	}
	defer closeFn()

	history, err := mgr.LoginHistory(ctx, username, time.Now().Add(-window), limit)
	if err != nil {
		return reportError(stderr, "login history", err)
	}
	return writeJSON(stdout, stderr, history)
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer, open opener) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var limit, offset int
	fs.IntVar(&limit, "limit", 50, "maximum accounts to list")
	fs.IntVar(&offset, "offset", 0, "accounts to skip")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	mgr, closeFn, err := open(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "open account store: %v\n", err)
		return 1
	}
	defer closeFn()

	accounts, err := mgr.List(ctx, limit, offset)
	if err != nil {
		fmt.Fprintf(stderr, "list accounts: %v\n", err)
		return 1
	}
	return writeJSON(stdout, stderr, accounts)
}

// runHash prints a bcrypt hash suitable for a memory store seed file.
func runHash(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var password string
	var cost int
	fs.StringVar(&password, "password", "", "password to hash (default $PROVISION_PASSWORD)")
	fs.IntVar(&cost, "cost", 0, "bcrypt cost (0 for the default)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if password == "" {
		password = os.Getenv("PROVISION_PASSWORD")
	}
	if password == "" {
		fmt.Fprintln(stderr, "hash requires -password or PROVISION_PASSWORD")
		return 2
	}

	encoder, err := auth.NewBCryptEncoder(cost)
	if err != nil {
		fmt.Fprintf(stderr, "hash: %v\n", err)
		return 2
	}
	hash, err := encoder.Encode(password)
	if err != nil {
		fmt.Fprintf(stderr, "hash: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(hash))
	return 0
}

func openDatabase(ctx context.Context) (accountManager, func(), error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.UsesDatabase() {
		return nil, nil, fmt.Errorf("store backend %q is file based; use the hash command to build seed entries", cfg.Auth.StoreBackend)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, "console")
	if err != nil {
		return nil, nil, err
	}

	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := factory.GetDB().InitSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, nil, err
	}

	encoder, err := auth.NewBCryptEncoder(cfg.Auth.BCryptCost)
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}

	repos := factory.NewRepositories()
	svc := services.NewAccountService(repos.Accounts, repos.AuthEvents, factory.GetTransactionManager(), encoder, logger)
	closeFn := func() {
		if err := factory.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return svc, closeFn, nil
}

func reportError(stderr io.Writer, action string, err error) int {
	fmt.Fprintf(stderr, "%s: %v\n", action, err)
	for k, v := range services.GetErrorDetails(err) {
		fmt.Fprintf(stderr, "  %s: %v\n", k, v)
	}
	return 1
}

// nonNil turns an empty list into an explicit empty set so the update clears it.
func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

func boolPtr(b bool) *bool {
	return &b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
