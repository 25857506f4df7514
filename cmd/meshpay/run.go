package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HuyPHD2024-2027/meshpay/internal/authority"
	"github.com/HuyPHD2024-2027/meshpay/internal/config"
	"github.com/HuyPHD2024-2027/meshpay/internal/meshtypes"
	"github.com/HuyPHD2024-2027/meshpay/internal/node"
	"github.com/HuyPHD2024-2027/meshpay/internal/statusapi"
)

// runCmd groups the long-running node subcommands, mirroring the
// teacher's "testnet start" command-group shape.
func runCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{Use: "run", Short: "run a mesh node"}
	cmd.AddCommand(runClientCmd(log))
	cmd.AddCommand(runAuthorityCmd(log))
	return cmd
}

func runClientCmd(log *logrus.Logger) *cobra.Command {
	c := &cobra.Command{
		Use:   "client",
		Short: "run a node in the payer role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, log, meshtypes.RoleClient)
		},
	}
	c.Flags().Int("status-port", 0, "if set, serve the read-only status API on this port")
	return c
}

func runAuthorityCmd(log *logrus.Logger) *cobra.Command {
	c := &cobra.Command{
		Use:   "authority",
		Short: "run a node in the committee-member role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, log, meshtypes.RoleAuthority)
		},
	}
	c.Flags().Int("status-port", 0, "if set, serve the read-only status API on this port")
	return c
}

func runNode(cmd *cobra.Command, log *logrus.Logger, role meshtypes.Role) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	entry := log.WithField("role", role)
	n, err := node.New(*cfg, role, entry)
	if err != nil {
		return err
	}

	switch role {
	case meshtypes.RoleClient:
		n.AttachClient()
	case meshtypes.RoleAuthority:
		n.AttachAuthority(authority.NewMemoryStore())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n.Start(ctx)
	defer n.Stop()

	if port, _ := cmd.Flags().GetInt("status-port"); port > 0 {
		srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: statusapi.NewRouter(n)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				entry.WithError(err).Warn("status server stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	entry.Info("node started")
	<-ctx.Done()
	entry.Info("node shutting down")
	return nil
}
