package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projecteru2/podfleet/config"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "podfleet",
		Short:         "podfleet - GPU pod fleet manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (yaml, json, toml or .env)")
	cmd.PersistentFlags().String("prefix", "", "machine name prefix")
	cmd.PersistentFlags().String("machines", "", "ordered machine allow-list, comma separated")
	cmd.PersistentFlags().Int("base-port", 0, "proxy listen port of the first machine")
	cmd.PersistentFlags().String("log-level", "", "log level")

	_ = viper.BindPFlag("machine_name_prefix", cmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag("machine_name_list", cmd.PersistentFlags().Lookup("machines"))
	_ = viper.BindPFlag("ssh_proxy_starting_port", cmd.PersistentFlags().Lookup("base-port"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	for key, value := range config.Defaults() {
		viper.SetDefault(key, value)
	}
	viper.SetEnvPrefix("PODFLEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("runpod_api_key", "PODFLEET_RUNPOD_API_KEY", "RUNPOD_API_KEY")

	cmd.AddCommand(
		createCmd,
		listCmd,
		stopCmd,
		deleteCmd,
		sshConfigCmd,
		proxyConfigCmd,
		scheduleCmd,
		keysCmd,
		versionCmd,
	)

	return cmd
}()

func initConfig() error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		viper.SetConfigName("podfleet")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/podfleet")
		viper.AddConfigPath("/etc/podfleet")
		// optional; a missing file is OK
		var notFound viper.ConfigFileNotFoundError
		if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := viper.Unmarshal(conf, viper.DecodeHook(config.DecodeHook())); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return log.SetupLog(context.Background(), conf.Log, "")
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
