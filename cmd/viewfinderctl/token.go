package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/viewfinder/internal/auth"
	"github.com/onnwee/viewfinder/internal/config"
)

var errNoSecret = errors.New("no signing secret: set " + config.EnvPrefix + "JWT_SECRET or pass --secret")

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage admin tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		subject string
		secret  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an admin token",
		Long: `Issue a signed token carrying the admin scope. The token is printed on
stdout so it can be piped into a secret store.`,
		Example: `  VIEWFINDER_JWT_SECRET=... viewfinderctl token issue --subject curator --ttl 24h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv(config.EnvPrefix + "JWT_SECRET")
			}
			if secret == "" {
				return errNoSecret
			}

			svc, err := auth.NewJWTService(secret)
			if err != nil {
				return err
			}
			token, err := svc.Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, shown in access logs")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $"+config.EnvPrefix+"JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
