package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/account"
	"github.com/confidential-voting/voting-deployer/internal/deploy"
	"github.com/confidential-voting/voting-deployer/internal/devnode"
	"github.com/confidential-voting/voting-deployer/internal/flags"
	"github.com/confidential-voting/voting-deployer/internal/inspect"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

const (
	appName   = "voting-deployer"
	envPrefix = "VOTING"
)

var rootFlags = []flags.Def[string]{
	{Name: "config", Description: "Config file (default: config.yaml next to the binary, in . or ./configs)"},
	{Name: "env-file", Default: ".env", Description: "Dotenv file loaded before the configuration"},
	{Name: "network", ViperKey: "network", Description: "Network to use, one of the keys under 'networks'"},
	{Name: "log-level", ViperKey: "log-level", Description: "Log level: debug, info, warn or error"},
}

var rootCmd = &cobra.Command{
	Use:          appName,
	Short:        "Deploy the confidential voting contract through the first reachable RPC endpoint",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}

		configFile, _ := cmd.Flags().GetString("config")
		if err := loadConfig(viper.GetViper(), configFile); err != nil {
			return err
		}

		level, err := logger.ParseLevel(configs.Values.LogLevel)
		if err != nil {
			return err
		}
		logger.Initialize(level)

		slog.With("network", configs.Values.Network).
			With("config_file", viper.ConfigFileUsed()).
			Debug("configuration loaded")

		return nil
	},
}

// loadConfig layers embedded defaults, the config file, the environment and
// flags, then decodes the result into configs.Values.
func loadConfig(v *viper.Viper, configFile string) error {
	if err := configs.LoadDefaults(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		if execPath, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(execPath))
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// A missing config file is fine: defaults, env and flags are enough.
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return errors.Join(err, errors.New("error reading config file"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("wallet.private-key", envPrefix+"_WALLET_PRIVATE_KEY", "PRIVATE_KEY"); err != nil {
		return fmt.Errorf("failed to bind private key env: %w", err)
	}

	if err := v.Unmarshal(&configs.Values); err != nil {
		return errors.Join(err, errors.New("unable to decode application config"))
	}
	return nil
}

func main() {
	flags.MustDeclare(viper.GetViper(), rootCmd.PersistentFlags(), rootFlags)

	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(network.CMD)
	rootCmd.AddCommand(account.CMD)
	rootCmd.AddCommand(inspect.CMD)
	rootCmd.AddCommand(devnode.CMD)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		slog.With("err", err.Error()).Error("command failed")
		os.Exit(1)
	}
}
