package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"gnb-pucch/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const Version = "0.3.0"

func loadEnvironment() {
	logger := logging.GetLogger()

	// Try to load .env file from current directory
	envFile := ".env"
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
		} else {
			logger.WithField("file", envFile).Debug("Loaded environment variables")
		}
		return
	}

	// Fall back to the directory of the executable
	if execPath, err := os.Executable(); err == nil {
		envFile = filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				logger.WithField("file", envFile).WithError(err).Warn("Error loading .env file")
			} else {
				logger.WithField("file", envFile).Debug("Loaded environment variables")
			}
		}
	}
}

// applyLogLevel sets both loggers; an explicit --log-level wins over the
// level from the configuration file.
func applyLogLevel(flagLevel, configLevel string) error {
	level := configLevel
	if flagLevel != "" {
		level = flagLevel
	}
	if level == "" {
		return nil
	}
	if err := logging.SetLogLevel(level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return logging.SetAllocatorLogLevel(level)
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "pucch-alloc",
		Short:         "Periodic PUCCH resource allocator",
		Long:          "Builds per-cell PUCCH resource pools and simulates SR/CSI allocation for attaching UEs",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyLogLevel(logLevel, "")
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newLayoutCmd())
	rootCmd.AddCommand(newSimulateCmd(&logLevel))

	return rootCmd
}

func Execute() error {
	loadEnvironment()
	return newRootCmd().Execute()
}
