package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/houzhh15/smolcert/config"
	"github.com/houzhh15/smolcert/service"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validation API",
		Long: `Serve POST /v1/validate, GET /healthz and GET /metrics.
SIGHUP reloads trust anchors from every configured source.`,
		Args:    cobra.NoArgs,
		Example: `  smolcert serve --config smolcert.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load(configPath)
			if err != nil {
				return err
			}

			svc, err := service.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go reloadOnHangup(ctx, svc)

			return svc.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func reloadOnHangup(ctx context.Context, svc *service.Service) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := svc.Reload(); err != nil {
				svc.Logger().Error("Failed to reload trust anchors", "error", err)
			}
		}
	}
}
