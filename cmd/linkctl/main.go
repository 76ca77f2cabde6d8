// linkctl administers a modernauth database directly, without going through
// the HTTP API. It is meant for the operator on the host running the
// service: registering the first servers, rotating a leaked secret, or
// granting the first administrator when bootstrap is disabled.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/service"
	"github.com/bonkmc/modernauth/internal/auth/store/drivers/sqlite"
	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `linkctl administers a modernauth database.

Usage:
  linkctl [flags] add <server-id>          register a server and print its secret
  linkctl [flags] remove <server-id>       delete a server with its tokens and users
  linkctl [flags] list                     list registered servers
  linkctl [flags] reset-key <server-id>    rotate a server secret and print the new one
  linkctl [flags] grant-admin <subject>    make an identity-provider subject an administrator
  linkctl [flags] invite                   mint an invite and print its link

Flags:
`

type options struct {
	dbPath     string
	pepperPath string
	baseURL    string
	email      string
	role       string
	servers    []string
	logLevel   string
}

// envDefaults lets linkctl share the server's environment.
type envDefaults struct {
	DatabaseFile  string `env:"AUTH_DATABASE_FILE"   envDefault:"modernauth.db"`
	PepperFile    string `env:"AUTH_PEPPER_FILE"     envDefault:"pepper"`
	PublicBaseURL string `env:"AUTH_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	var defaults envDefaults
	if err := env.Parse(&defaults); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	flags := pflag.NewFlagSet("linkctl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.dbPath, "db", defaults.DatabaseFile, "path to the SQLite database")
	flags.StringVar(&opts.pepperPath, "pepper", defaults.PepperFile, "path to the pepper file shared with the server")
	flags.StringVar(&opts.baseURL, "base-url", defaults.PublicBaseURL, "public base URL used in invite links")
	flags.StringVar(&opts.email, "email", "", "email address (grant-admin, invite)")
	flags.StringVar(&opts.role, "role", string(domain.RoleManager), "invite role: admin or manager")
	flags.StringSliceVar(&opts.servers, "server", nil, "server a manager invite grants (repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return err
	}
	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return errors.New("missing command")
	}

	logger := slogx.New(slogx.Config{
		Service: "linkctl",
		Level:   opts.logLevel,
		Format:  "text",
		Output:  stderr,
	})
	ctx = slogx.WithContext(ctx, logger)

	c, err := open(opts)
	if err != nil {
		return err
	}
	defer c.close()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "add":
		id, err := oneArg(cmd, cmdArgs)
		if err != nil {
			return err
		}
		secret, err := c.tenants.Register(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "server %s registered\nsecret: %s\n", id, secret)

	case "remove":
		id, err := oneArg(cmd, cmdArgs)
		if err != nil {
			return err
		}
		if err := c.tenants.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "server %s removed\n", id)

	case "list":
		tenants, err := c.tenants.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tUPDATED")
		for _, t := range tenants {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()

	case "reset-key":
		id, err := oneArg(cmd, cmdArgs)
		if err != nil {
			return err
		}
		secret, err := c.tenants.Rotate(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "server %s secret rotated\nsecret: %s\n", id, secret)

	case "grant-admin":
		subject, err := oneArg(cmd, cmdArgs)
		if err != nil {
			return err
		}
		if err := c.access.Grant(ctx, subject, true, nil, opts.email); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "administrator granted")

	case "invite":
		role, err := domain.ParseInviteRole(opts.role)
		if err != nil {
			return err
		}
		inv, err := c.invites.MintInvite(ctx, service.InviteParams{
			Role:    role,
			Email:   opts.email,
			Servers: opts.servers,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s invite for %s\nlink: %s\nexpires: %s\n",
			inv.Role, inv.Email, inv.Link, inv.ExpiresAt.Format(time.RFC3339))

	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

type components struct {
	store   *sqlite.Store
	tenants *service.TenantRegistry
	access  *service.AccessDirectory
	invites *service.InviteService
}

func open(opts options) (*components, error) {
	pepper, err := cryptox.LoadOrGeneratePepper(opts.pepperPath)
	if err != nil {
		return nil, err
	}

	st, err := sqlite.NewStore(opts.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	hasher := cryptox.NewArgon2Hasher(pepper)
	access := &service.AccessDirectory{
		Store:    st,
		Hasher:   hasher,
		Subjects: cryptox.NewKeyedFingerprinter(pepper, cryptox.FingerprintContextSubject),
	}
	tokens := &service.TokenBroker{
		Store:  st,
		Digest: cryptox.NewKeyedFingerprinter(pepper, cryptox.FingerprintContextToken),
	}

	return &components{
		store:   st,
		tenants: &service.TenantRegistry{Store: st, Hasher: hasher},
		access:  access,
		invites: &service.InviteService{
			Tokens:  tokens,
			Access:  access,
			Hasher:  hasher,
			BaseURL: opts.baseURL,
		},
	}, nil
}

func (c *components) close() {
	if err := c.store.Close(); err != nil {
		slog.Warn("close database", "err", err)
	}
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s takes exactly one argument", cmd)
	}
	return args[0], nil
}
