package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"demandline/internal/app"
	"demandline/internal/config"
	"demandline/internal/logging"
	"demandline/internal/server"
	"demandline/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "dl",
	Short: "Demandline CLI",
	Long: `Demandline tracks demands assigned by a leader to collaborators.
- Demand: a unit of work with a type, priority, due date and one collaborator.
- Lifecycle: pending -> completed (by anyone who does the work) -> confirmed (by the leader only).
- Activity log: every create, complete and confirm is recorded and never changes afterwards.
- Session: demands live only as long as the session that holds them; nothing is saved to disk.
- Views: my demands, pending confirmations (leader), history and the dashboard.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEMANDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "directory holding demandline.yml")
	flags.StringP("config", "c", "", "config file (overrides the workspace file)")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("store", "", "session store driver: memory or sqlite")
	flags.String("timezone", "", "IANA zone for calendar dates")
	for _, name := range []string{"workspace", "config", "json", "log-level", "log-format", "store", "timezone"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(configCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(rt *app.Runtime) error {
				cfg := rt.Config
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				idle, err := cfg.IdleTimeout()
				if err != nil {
					return err
				}
				secret := viper.GetString("jwt-secret")
				if secret == "" {
					secret = cfg.Server.JWTSecret
				}
				logger := logging.Component(rt.Logger, "server")
				sessions := session.NewRegistry(rt.Settings, rt.SessionOptions()...)
				defer sessions.CloseAll()

				handler, err := server.New(server.Config{
					Sessions: sessions,
					Users:    rt.Settings.Users,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret, AllowActorHeader: allowHeader},
					Logger:   logger,
					Gatherer: rt.Registry,
				})
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				go sessions.RunReaper(ctx, idle, 0)

				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				logger.Info().Str("addr", addr).Str("base_path", basePath).Dur("session_idle_timeout", idle).Msg("serving demandline API")
				fmt.Printf("Serving Demandline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	cmd.Flags().BoolVar(&allowHeader, "allow-actor-header", false, "accept X-Actor-Id instead of a login token")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for login tokens (env DEMANDLINE_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List the user roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(func(rt *app.Runtime) error {
				return printUsers(rt.Settings.Users.All())
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect demandline.yml",
		Long:  "The config declares the user roster and its leader, the timezone used for calendar dates, the session store driver, server settings and logging.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := resolveConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": errString(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default demandline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// --- helpers ---

func resolveConfig() (*config.Config, error) {
	return app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"), app.Overrides{
		LogLevel:  viper.GetString("log-level"),
		LogFormat: viper.GetString("log-format"),
		Driver:    viper.GetString("store"),
		Timezone:  viper.GetString("timezone"),
	})
}

func withRuntime(fn func(*app.Runtime) error) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	rt, err := app.NewRuntime(cfg, os.Stderr)
	if err != nil {
		return err
	}
	return fn(rt)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
