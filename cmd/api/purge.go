package main

import (
	"errors"

	"github.com/go-otp-auth/internal/application/cleanup"
	"github.com/go-otp-auth/internal/config"
	"github.com/spf13/cobra"
)

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired OTP codes and expired or revoked sessions once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if cfg.StoreDriver == config.StoreDriverPostgres && cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is required")
			}
			st, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.close()

			svc := cleanup.NewService(cleanup.ServiceDeps{OTPRepo: st.otpExpiry, SessionRepo: st.sessionExpiry})
			res, err := svc.Purge(cmd.Context())
			cmd.Printf("purged %d otp codes, %d sessions\n", res.OTPCodes, res.Sessions)
			return err
		},
	}
}
