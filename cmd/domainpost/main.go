package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/delegate/internal/app"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "domainpost: %s (%s)\n", err, app.ErrorKind(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := app.NewViper()

	cmd := &cobra.Command{
		Use:   "domainpost",
		Short: "Post a domain-restricted activity on behalf of a domain user",
		Long: `domainpost signs a JWT-bearer assertion with a service account key,
exchanges it for an access token scoped to the given user via domain-wide
delegation and inserts one domain-restricted activity as that user.

Settings come from flags, DOMAINPOST_* environment variables and an optional
config file, in that order of precedence.`,
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			cfg, err := app.LoadConfig(v, configFile)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return application.Run(ctx)
		},
	}

	if err := app.RegisterFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}

	return cmd
}
