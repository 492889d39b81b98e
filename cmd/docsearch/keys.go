package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func newKeysCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the API keys that guard searchd's admin endpoints",
		Long: `Creates, lists and revokes keys in the api_keys table. searchd
accepts these keys in addition to the ones listed under auth.keys.

Postgres settings come from --config and DS_POSTGRES_* variables.`,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	var (
		rateLimit int
		ttl       time.Duration
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a key and print it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			if rateLimit < 0 || ttl < 0 {
				return fmt.Errorf("--rate-limit and --ttl cannot be negative")
			}
			return withKeyStore(cmd.Context(), configPath, func(s *apikey.Store) error {
				var expiresAt *time.Time
				if ttl > 0 {
					t := time.Now().Add(ttl).UTC()
					expiresAt = &t
				}
				raw, info, err := s.Create(cmd.Context(), args[0], rateLimit, expiresAt)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "created %s (%s)\n", info.ID, info.Name)
				fmt.Fprintf(out, "key: %s\n", raw)
				fmt.Fprintln(out, "store it now; it is not shown again")
				return nil
			})
		},
	}
	create.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per window for this key (0 uses auth.keyRateLimit)")
	create.Flags().DurationVar(&ttl, "ttl", 0, "expire the key after this long (0 never expires)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd)
			return withKeyStore(cmd.Context(), configPath, func(s *apikey.Store) error {
				keys, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				printKeys(cmd.OutOrStdout(), keys)
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key by id (as shown by list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			id, err := parseKeyID(args[0])
			if err != nil {
				return err
			}
			return withKeyStore(cmd.Context(), configPath, func(s *apikey.Store) error {
				if err := s.Revoke(cmd.Context(), id); err != nil {
					return fmt.Errorf("revoking db:%d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked db:%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, revoke)
	return cmd
}

func withKeyStore(ctx context.Context, configPath string, fn func(*apikey.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	s := apikey.NewStore(db)
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(s)
}

// parseKeyID accepts "db:42" or "42". Static keys live in config and cannot
// be revoked here.
func parseKeyID(s string) (int64, error) {
	if strings.HasPrefix(s, "static:") {
		return 0, fmt.Errorf("%s is a config key; remove it from auth.keys instead", s)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "db:"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid key id %q", s)
	}
	return id, nil
}

func printKeys(w io.Writer, keys []apikey.KeyInfo) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "no active keys")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRATE LIMIT\tCREATED\tEXPIRES")
	for _, k := range keys {
		limit := "default"
		if k.RateLimit > 0 {
			limit = strconv.Itoa(k.RateLimit)
		}
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, limit, k.CreatedAt.Format(time.RFC3339), expires)
	}
	tw.Flush()
}
