package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/fareprobe/internal/config"
	"github.com/xkilldash9x/fareprobe/internal/observability"
)

type configKeyType struct{}

var configKey = configKeyType{}

const envPrefix = "FAREPROBE"

// NewRootCommand builds the command tree. Each call gets its own viper
// instance, so commands built here never share flag or config state.
func NewRootCommand() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "fareprobe",
		Short:         "fareprobe drives a flight search form and advises on travel dates and fares.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if err := bindCommandFlags(v, cmd); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "fareprobe"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting fareprobe", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml, then ~/.fareprobe.yaml)")
	rootCmd.SetVersionTemplate("fareprobe version {{.Version}}\n")

	rootCmd.AddCommand(
		newSearchCmd(),
		newBatchCmd(),
		newTrainCmd(),
		newResolveCmd(),
		newEstimateCmd(),
		newRiskCmd(),
		newHistoryCmd(),
	)
	return rootCmd
}

// Execute runs the CLI with ctx and returns the command error, already logged.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Interrupted.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	return err
}

// initializeConfig declares defaults and reads the config file and
// FAREPROBE_* environment variables into v. A missing config file is fine.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	config.SetDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return nil
	case !errors.As(err, &notFound):
		return fmt.Errorf("error reading config file: %w", err)
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	fallback := filepath.Join(home, ".fareprobe.yaml")
	if _, err := os.Stat(fallback); err != nil {
		return nil
	}
	v.SetConfigFile(fallback)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// configFrom returns the config loaded by the root command.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// configKeyAnnotation prefixes the command annotations that map a flag to
// the config key it overrides.
const configKeyAnnotation = "fareprobe.config-key/"

// bindFlags maps flag names of cmd to config keys so flags override the file
// and the environment. Several commands may override the same key; only the
// flags of the command that runs are bound, by bindCommandFlags.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	for flag, key := range keys {
		if cmd.Flags().Lookup(flag) == nil {
			panic(fmt.Sprintf("binding --%s: no such flag on %s", flag, cmd.Name()))
		}
		cmd.Annotations[configKeyAnnotation+flag] = key
	}
}

// bindCommandFlags binds the flags that cmd maps to config keys into v.
func bindCommandFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range cmd.Annotations {
		flag, ok := strings.CutPrefix(name, configKeyAnnotation)
		if !ok {
			continue
		}
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}
