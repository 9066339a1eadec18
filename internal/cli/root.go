package cli

import (
	"fmt"
	"log"
	"strings"

	"escape-room-service/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// options are the persistent flags. Each one can also come from the
// environment (PORT, CONFIG_PATH, ESCAPE_*) and overrides the YAML file.
type options struct {
	port         string
	configPath   string
	redisAddr    string
	postgresURL  string
	authSecret   string
	adminSubject string
	namespace    string
}

// Execute runs the CLI.
func Execute() error {
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded environment from .env")
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "escape-room-service",
		Short:         "Live multi-team escape room game server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.port, "port", "", "port to listen on (env: PORT)")
	fs.StringVar(&opts.configPath, "config", "config/config.yaml", "path to YAML config (env: CONFIG_PATH)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "redis address (env: ESCAPE_REDIS_ADDR)")
	fs.StringVar(&opts.postgresURL, "postgres-url", "", "postgres DSN (env: ESCAPE_POSTGRES_URL)")
	fs.StringVar(&opts.authSecret, "auth-secret", "", "token signing secret (env: ESCAPE_AUTH_SECRET)")
	fs.StringVar(&opts.adminSubject, "admin-subject", "", "subject granted admin rights (env: ESCAPE_ADMIN_SUBJECT)")
	fs.StringVar(&opts.namespace, "namespace", "", "event namespace (env: ESCAPE_NAMESPACE)")
	bindEnv(fs, map[string]string{"port": "PORT", "config": "CONFIG_PATH"})

	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewUploadCmd(opts))
	cmd.AddCommand(NewTokenCmd(opts))
	return cmd
}

// bindEnv fills unset flags from the environment. Flags listed in legacy use
// the given variable name; the rest use ESCAPE_<FLAG>.
func bindEnv(fs *pflag.FlagSet, legacy map[string]string) {
	v := viper.New()
	v.SetEnvPrefix("ESCAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if name, ok := legacy[f.Name]; ok {
			_ = v.BindEnv(f.Name, name)
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// load reads the YAML config and applies flag and environment overrides.
func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.port != "" {
		cfg.Server.Port = o.port
	}
	if o.redisAddr != "" {
		cfg.Redis.Addr = o.redisAddr
	}
	if o.postgresURL != "" {
		cfg.Postgres.URL = o.postgresURL
	}
	if o.authSecret != "" {
		cfg.Auth.Secret = o.authSecret
	}
	if o.adminSubject != "" {
		cfg.Auth.AdminSubject = o.adminSubject
	}
	if o.namespace != "" {
		cfg.Game.Namespace = o.namespace
	}
	return cfg, nil
}
