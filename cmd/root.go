package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/nodegraph/internal/config"
	"github.com/zjrosen/nodegraph/internal/flags"
	"github.com/zjrosen/nodegraph/internal/log"
	"github.com/zjrosen/nodegraph/internal/tracing"
)

// localConfigPath is checked before the user config and is where
// "config init" writes by default.
const localConfigPath = ".nodegraph/config.yaml"

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	featureFlags *flags.Registry
	tracer       *tracing.Provider
	closeLog     func()
)

var rootCmd = &cobra.Command{
	Use:   "nodegraph",
	Short: "Flatten node-graph workflows with nested subgraphs",
	Long: `nodegraph reduces a workflow document whose subgraphs may be nested to
any depth into the flat, id-addressed node list an execution engine runs.

Every node inside a subgraph instance gets an execution id made of the
enclosing instance ids and its own id, outermost first ("10:5:99").`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .nodegraph/config.yaml, then ~/.config/nodegraph/config.yaml)")
	rootCmd.PersistentFlags().String("store", "", "path to the blueprint database")

	_ = viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("flatten.max_depth", defaults.Flatten.MaxDepth)
	viper.SetDefault("flatten.format", defaults.Flatten.Format)
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("flags", defaults.Flags)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .nodegraph/config.yaml (current directory)
		// 2. ~/.config/nodegraph/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "nodegraph"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine: the defaults above apply.
	_ = viper.ReadInConfig()

	_ = viper.Unmarshal(&cfg)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Log.Path != "" {
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		closeLog = cleanup
		log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	}

	featureFlags = flags.New(cfg.Flags)

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	tracer = provider

	log.Debug(log.CatCLI, "command started", "command", cmd.CommandPath(), "config", viper.ConfigFileUsed())
	return nil
}

func teardown(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracer != nil {
		if err := tracer.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorErr(log.CatCLI, "tracing shutdown failed", err)
		}
		tracer = nil
	}
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
