package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	adminclient "github.com/skykeenentreprise/admin-client"
)

const defaultTimeout = 30 * time.Second

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configFile     string
	apiURL         string
	expectedDomain string
	output         string
	debug          bool
	timeout        time.Duration

	creds  *viper.Viper
	logger *zap.SugaredLogger
	client *adminclient.Client
}

func newRootCmd() *cobra.Command {
	a := &app{creds: viper.New()}

	root := &cobra.Command{
		Use:           "skyadmin",
		Short:         "Administer Skykeen registrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (default "+adminclient.DefaultBaseURL+")")
	flags.StringVar(&a.expectedDomain, "expected-domain", adminclient.DefaultExpectedDomain, "registrable domain the API URL must belong to, empty to disable")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVar(&a.debug, "debug", false, "log every request")
	flags.DurationVar(&a.timeout, "timeout", defaultTimeout, "overall timeout for the command")
	flags.String("email", "", "admin email (env SKYKEEN_EMAIL)")
	flags.String("password", "", "admin password (env SKYKEEN_PASSWORD)")

	_ = a.creds.BindPFlag("email", flags.Lookup("email"))
	_ = a.creds.BindPFlag("password", flags.Lookup("password"))
	_ = a.creds.BindEnv("email", "SKYKEEN_EMAIL")
	_ = a.creds.BindEnv("password", "SKYKEEN_PASSWORD")

	root.AddCommand(
		newCheckCmd(a),
		newLogoutCmd(a),
		newRegistrationsCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != "json" && a.output != "yaml" {
		return fmt.Errorf("unknown output format %q", a.output)
	}

	cfg, err := adminclient.LoadConfig(a.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = a.apiURL
	}
	if flags.Changed("expected-domain") {
		cfg.ExpectedDomain = a.expectedDomain
	}
	if flags.Changed("debug") {
		cfg.Debug = a.debug
	}

	a.logger, err = newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	a.client, err = adminclient.New(cfg.BaseURL(a.logger),
		adminclient.WithLogger(a.logger),
		adminclient.WithDebug(cfg.Debug),
	)
	return err
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// login opens a session when credentials were given. Cookies live only for
// the current invocation.
func (a *app) login(ctx context.Context) error {
	email := a.creds.GetString("email")
	password := a.creds.GetString("password")
	if email == "" && password == "" {
		return nil
	}
	if _, err := a.client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login as %s: %w", email, err)
	}
	a.logger.Debugw("logged in", "email", email)
	return nil
}
