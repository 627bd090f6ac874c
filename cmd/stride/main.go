package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"stride/internal/app"
	"stride/internal/config"
	"stride/internal/db"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/engine/auth"
	"stride/internal/logging"
	"stride/internal/migrate"
	"stride/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Stride device requirement pipeline",
	Long: `Stride tracks assistive-device requirements from capture to production.
Concepts:
- Requirement: a device need captured from the field (CDC, SEN, BLIND, ...).
- States: Sensing (S1-S4), then Internal design (H-INT-*) or Designathon (H-DES-*), then Convergence (H-DOE-*).
- Path: chosen once at S4 and fixed afterwards; it decides which branch S4 can enter.
- Gates: checklist items that must be attested before a transition.
- Phase data: structured fields captured with a transition, plus free-form notes.
- Committee: weighted reviews recorded at H-DOE-3/4; revisions loop back to the chosen path.
- Aging: requirements that overstay their phase threshold.
- Event log: every change, view with 'stride log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STRIDE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("role", "", "role claimed by the actor (in addition to granted roles)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "actor-id", "role", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(requirementCmd())
	rootCmd.AddCommand(statesCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(gatesCmd())
	rootCmd.AddCommand(advanceCmd())
	rootCmd.AddCommand(assignPathCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(agingCmd())
	rootCmd.AddCommand(countsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var orgID string
	var writeConfig bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise the workspace database and grant the current actor coe_admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if writeConfig {
				path := config.Path(workspace)
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := os.WriteFile(path, []byte(config.GenerateDefault(orgID)), 0o644); err != nil {
					return err
				}
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ResolveConfig(ctx, workspace, r)
				if err != nil {
					return err
				}
				if !writeConfig && cfg.Org.ID != orgID {
					cfg.Org.ID = orgID
					if err := app.SeedConfig(ctx, r, cfg); err != nil {
						return err
					}
				}
				actorID := viper.GetString("actor-id")
				if err := app.GrantRole(ctx, r, actorID, config.RoleAdmin); err != nil {
					return err
				}
				fmt.Printf("Initialised %s (org %s); %s is %s\n", db.Path(workspace), cfg.Org.ID, actorID, config.RoleAdmin)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "coe", "organisation id")
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "write a default stride.yml into the workspace")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				out, err := yaml.Marshal(e.Config)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(out)
				return err
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate stride.yml in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			fmt.Printf("config ok (org %s, %d roles, %d webhooks)\n", c.Org.ID, len(c.RBAC.Roles), len(c.Webhooks))
			return nil
		},
	})
	return cfg
}

// --- helpers ---

func newLogger() zerolog.Logger {
	return logging.New(viper.GetString("log-level"), os.Stderr)
}

func currentActor() domain.Actor {
	return domain.Actor{
		ID:   strings.TrimSpace(viper.GetString("actor-id")),
		Role: strings.TrimSpace(viper.GetString("role")),
	}
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		cfg, err := app.ResolveConfig(ctx, viper.GetString("workspace"), r)
		if err != nil {
			return err
		}
		e := engine.New(r.DB, cfg)
		e.Logger = newLogger()
		return fn(ctx, e)
	})
}

// withActor runs fn after checking the current actor holds perm.
func withActor(ctx context.Context, perm string, fn func(context.Context, engine.Engine, domain.Actor) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		actor := currentActor()
		svc := auth.Service{DB: e.DB, Config: e.Config}
		if err := svc.Require(ctx, actor, perm); err != nil {
			var fe auth.ForbiddenError
			if errors.As(err, &fe) {
				return fmt.Errorf("%s: %w (grant a role with 'stride rbac grant' or pass --role)", actor.ID, err)
			}
			return err
		}
		return fn(ctx, e, actor)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOrText(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}
