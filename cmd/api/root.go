package main

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/go-otp-auth/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// NewRootCmd creates the root command. Running it without a subcommand serves
// the HTTP API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otpauth",
		Short: "Email OTP verification and sign-in service",
		Long: `otpauth registers accounts by email and password, verifies them with a
one-time passcode sent by email, and signs verified accounts in.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPurgeCmd())

	return cmd
}

// loadConfig loads the dotenv file, reads the environment and installs the
// JSON slog handler. Validation is left to the commands that need it.
func loadConfig() *config.Config {
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No %s file found, reading from environment", envFile)
	}
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})))
	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
