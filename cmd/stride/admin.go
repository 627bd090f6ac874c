package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"stride/internal/app"
	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/engine/auth"
	"stride/internal/logging"
	"stride/internal/repo"
	"stride/internal/server"
)

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change to a requirement is recorded as an event: creation, transitions, revisions, path choices and reviews.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermEventsRead, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				events, err := e.Repo.LatestEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityID, evt.ActorID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rbac",
		Short: "RBAC management",
	}
	cmd.AddCommand(rbacWhoamiCmd())
	cmd.AddCommand(rbacGrantCmd())
	cmd.AddCommand(rbacRevokeCmd())
	cmd.AddCommand(rbacBootstrapCmd())
	return cmd
}

func rbacWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := currentActor()
				svc := auth.Service{DB: e.DB, Config: e.Config}
				roles, err := svc.EffectiveRoles(ctx, actor)
				if err != nil {
					return err
				}
				perms, err := svc.ActorPermissions(ctx, actor)
				if err != nil {
					return err
				}
				attest, err := svc.CanAttestGates(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrText(map[string]any{
					"actor_id":         actor.ID,
					"roles":            roles,
					"permissions":      perms,
					"can_attest_gates": attest,
				})
			})
		},
	}
}

func rbacGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <actor-id> <role-id>",
		Short: "Grant role to actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRBACManage, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				return app.GrantRole(ctx, e.Repo, args[0], args[1])
			})
		},
	}
}

func rbacRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <actor-id> <role-id>",
		Short: "Revoke role from actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermRBACManage, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				return app.RevokeRole(ctx, e.Repo, args[0], args[1])
			})
		},
	}
}

func rbacBootstrapCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "bootstrap <actor-id>",
		Short: "Grant a role without RBAC checks (dev only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := app.ResolveConfig(ctx, viper.GetString("workspace"), r); err != nil {
					return err
				}
				return app.GrantRole(ctx, r, target, role)
			})
		},
	}
	cmd.Flags().StringVar(&role, "as", config.RoleAdmin, "role id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP API"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var owner, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key; the raw key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermAPIKeyManage, func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				if owner == "" {
					owner = actor.ID
				}
				now := time.Now().UTC().Format(time.RFC3339)
				tx, err := e.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := e.Repo.EnsureActor(ctx, tx, owner, now); err != nil {
					return err
				}
				raw, key, err := e.Repo.IssueAPIKey(ctx, tx, owner, name, now)
				if err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": key.ActorID, "key": raw})
				}
				fmt.Printf("API key %s for %s:\n%s\n", key.ID, key.ActorID, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "key owner (defaults to current actor)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermAPIKeyManage, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				keys, err := e.Repo.ListAPIKeys(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "actor", "", "filter by owner")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), config.PermAPIKeyManage, func(ctx context.Context, e engine.Engine, _ domain.Actor) error {
				return e.Repo.RevokeAPIKey(ctx, args[0])
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
				log := logging.JSON(viper.GetString("log-level"), os.Stderr)
				e.Logger = log
				if !cmd.Flags().Changed("addr") && e.Config.Server.Addr != "" {
					addr = e.Config.Server.Addr
				}
				if !cmd.Flags().Changed("base-path") && e.Config.Server.BasePath != "" {
					basePath = e.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{
					JWTSecret:              viper.GetString("jwt_secret"),
					EnableDevLogin:         devLogin,
					AllowLegacyActorHeader: legacyHeaders,
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("STRIDE_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: &log})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				if d := server.NewDispatcher(e.Repo, e.Config, log); d != nil {
					g.Go(func() error { return d.Run(ctx) })
				}
				log.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving stride API")
				fmt.Printf("Serving Stride API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, strings.TrimRight(basePath, "/"))
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login (development only)")
	cmd.Flags().BoolVar(&legacyHeaders, "legacy-actor-header", false, "trust X-Actor-Id without credentials (development only)")
	return cmd
}
