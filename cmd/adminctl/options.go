package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"referral-tg-admin/internal/constants"
	"referral-tg-admin/internal/models"
)

// options are the resolved command line settings
type options struct {
	URL      string
	Username string
	Password string
	Status   models.WithdrawalStatus
	Currency string
	Yes      bool
	Verbose  bool
}

// flagEnv lists the environment variables consulted for flags left unset
var flagEnv = map[string]string{
	"url":      "ADMIN_API_URL",
	"username": "ADMIN_USERNAME",
	"password": "ADMIN_PASSWORD",
	"currency": "CURRENCY",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("adminctl", pflag.ContinueOnError)
	flags.StringP("url", "u", "http://localhost:5000", "admin API base URL (ADMIN_API_URL)")
	flags.String("username", "admin", "admin username (ADMIN_USERNAME)")
	flags.String("password", "", "admin password (ADMIN_PASSWORD)")
	flags.String("status", "", "filter withdrawals by status (pending, approved, rejected)")
	flags.String("currency", constants.DefaultCurrency, "currency symbol used in output (CURRENCY)")
	flags.Bool("yes", false, "confirm destructive commands")
	flags.BoolP("verbose", "v", false, "log requests")
	return flags
}

// loadOptions resolves every setting from, in order, an explicit flag,
// its environment variable and the flag default
func loadOptions(flags *pflag.FlagSet) (options, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return options{}, fmt.Errorf("failed to bind flags: %w", err)
	}
	for key, env := range flagEnv {
		if err := v.BindEnv(key, env); err != nil {
			return options{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	opts := options{
		URL:      v.GetString("url"),
		Username: v.GetString("username"),
		Password: v.GetString("password"),
		Status:   models.WithdrawalStatus(v.GetString("status")),
		Currency: v.GetString("currency"),
		Yes:      v.GetBool("yes"),
		Verbose:  v.GetBool("verbose"),
	}

	switch opts.Status {
	case "", models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalRejected:
	default:
		return options{}, fmt.Errorf("unknown status %q", opts.Status)
	}
	return opts, nil
}
