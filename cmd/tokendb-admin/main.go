// ABOUTME: Admin CLI for tokendb user and token management
// ABOUTME: Operates directly on the catalog file; no server needs to be running

package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/tokendb/internal/auth"
	"github.com/2389/tokendb/internal/catalog"
	"github.com/2389/tokendb/internal/lifecycle"
	"github.com/2389/tokendb/internal/notify"
)

const banner = `
 _        _                  _ _                      _           _
| |_ ___ | | _____ _ __   __| | |__         __ _  __| |_ __ ___ (_)_ __
| __/ _ \| |/ / _ \ '_ \ / _' | '_ \ _____ / _' |/ _' | '_ ' _ \| | '_ \
| || (_) |   <  __/ | | | (_| | |_) |_____| (_| | (_| | | | | | | | | | |
 \__\___/|_|\_\___|_| |_|\__,_|_.__/       \__,_|\__,_|_| |_| |_|_|_| |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "users":
		err = cmdUsers(ctx, args)
	case "tokens":
		err = cmdTokens(ctx, args)
	case "uses":
		err = cmdUses(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: tokendb-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  users create --name NAME --email EMAIL   Register a user (prompts for password)")
	fmt.Println("  users show --email EMAIL                 Show a user and their tokens")
	fmt.Println("  tokens create --email EMAIL --db NAME    Create a pending token (verifies owner password)")
	fmt.Println("  tokens activate --id ID --code CODE      Activate a token with its code")
	fmt.Println("  tokens list --email EMAIL                List a user's tokens")
	fmt.Println("  uses list --token-id ID [--limit N]      Show the audit trail for a token")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  TOKENDB_ADMIN_CONFIG   Config path (default: ~/.config/tokendb/admin.toml)")
}

// openCatalog loads config and opens the catalog store.
func openCatalog() (*Config, *catalog.Store, error) {
	cfg, err := loadConfig(configPath())
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cat, nil
}

func cmdUsers(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: users <create|show> [flags]")
	}

	switch args[0] {
	case "create":
		return usersCreate(ctx, args[1:])
	case "show":
		return usersShow(ctx, args[1:])
	default:
		return fmt.Errorf("unknown users subcommand: %s", args[0])
	}
}

func usersCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users create", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return errors.New("--name and --email are required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return errors.New("password must not be empty")
	}

	_, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	user, err := cat.CreateUser(ctx, *name, *email, hashPassword(password))
	if err != nil {
		// Do not leak which constraint failed
		if errors.Is(err, catalog.ErrDuplicateEmail) {
			return errors.New("could not create user")
		}
		return err
	}

	color.Green("Created user %d (%s)", user.ID, user.Email)
	return nil
}

// hashPassword derives the stored password hash. The catalog only ever
// sees this hash; the plaintext stays at the transport boundary.
func hashPassword(password []byte) string {
	sum := sha256.Sum256(password)
	return hex.EncodeToString(sum[:])
}

func usersShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("users show", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	_, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	user, err := cat.GetUserByEmail(ctx, *email)
	if err != nil {
		return err
	}

	fmt.Printf("User:    %d\n", user.ID)
	fmt.Printf("Name:    %s\n", user.FullName)
	fmt.Printf("Email:   %s\n", user.Email)
	fmt.Printf("Active:  %v\n", user.Active)
	fmt.Printf("Created: %s\n", user.CreatedAt.Format(time.RFC3339))
	fmt.Println()

	return printTokens(ctx, cat, user.ID)
}

func cmdTokens(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: tokens <create|activate|list> [flags]")
	}

	switch args[0] {
	case "create":
		return tokensCreate(ctx, args[1:])
	case "activate":
		return tokensActivate(ctx, args[1:])
	case "list":
		return tokensList(ctx, args[1:])
	default:
		return fmt.Errorf("unknown tokens subcommand: %s", args[0])
	}
}

func tokensCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tokens create", flag.ExitOnError)
	email := fs.String("email", "", "owner email")
	db := fs.String("db", "", "logical database name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *db == "" {
		return errors.New("--email and --db are required")
	}

	cfg, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	user, err := cat.GetUserByEmail(ctx, *email)
	if err != nil {
		return err
	}

	fmt.Printf("Password for %s: ", user.Email)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	if !user.CheckPasswordHash(hashPassword(password)) {
		return errors.New("invalid credentials")
	}

	signer := auth.NewSigner([]byte(cfg.Auth.TokenSecret))
	manager := lifecycle.NewManager(cat, signer, notify.NewLogNotifier(), cfg.codeTTL())

	token, err := manager.CreateToken(ctx, user, *db)
	if err != nil {
		return err
	}

	color.Green("Created pending token %d for database %q", token.ID, token.DatabaseName)
	fmt.Println()
	fmt.Printf("Token string:\n  %s\n\n", token.TokenString)
	fmt.Printf("Activation code sent to %s", user.Email)
	if token.ActivationCodeExpiry != nil {
		fmt.Printf(" (expires %s)", token.ActivationCodeExpiry.Format(time.RFC3339))
	}
	fmt.Println()
	return nil
}

func tokensActivate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tokens activate", flag.ExitOnError)
	id := fs.Int64("id", 0, "token id")
	code := fs.String("code", "", "activation code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 || *code == "" {
		return errors.New("--id and --code are required")
	}

	cfg, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	signer := auth.NewSigner([]byte(cfg.Auth.TokenSecret))
	manager := lifecycle.NewManager(cat, signer, notify.NewLogNotifier(), cfg.codeTTL())

	if err := manager.Activate(ctx, *id, *code); err != nil {
		return err
	}

	color.Green("Token %d is active", *id)
	return nil
}

func tokensList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tokens list", flag.ExitOnError)
	email := fs.String("email", "", "owner email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	_, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	user, err := cat.GetUserByEmail(ctx, *email)
	if err != nil {
		return err
	}

	return printTokens(ctx, cat, user.ID)
}

func printTokens(ctx context.Context, cat *catalog.Store, userID int64) error {
	tokens, err := cat.ListTokens(ctx, catalog.TokenFilter{UserID: &userID})
	if err != nil {
		return err
	}

	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATABASE\tACTIVE\tCREATED")
	for _, t := range tokens {
		state := "pending"
		if t.Active {
			state = "active"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.DatabaseName, state, t.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func cmdUses(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "list" {
		return errors.New("usage: uses list --token-id ID [--limit N]")
	}

	fs := flag.NewFlagSet("uses list", flag.ExitOnError)
	tokenID := fs.Int64("token-id", 0, "token id")
	limit := fs.Int("limit", 100, "max records")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *tokenID == 0 {
		return errors.New("--token-id is required")
	}

	_, cat, err := openCatalog()
	if err != nil {
		return err
	}
	defer cat.Close()

	uses, err := cat.ListUses(ctx, catalog.UseFilter{TokenID: tokenID, Limit: *limit})
	if err != nil {
		return err
	}

	if len(uses) == 0 {
		fmt.Println("No uses recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tDATA")
	for _, u := range uses {
		fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.CreatedAt.Format(time.RFC3339), u.Data)
	}
	return w.Flush()
}
