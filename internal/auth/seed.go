package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// demoPassword is the shared password for seeded demo accounts.
const demoPassword = "123456"

// demoAccounts are the accounts created on first boot for demo deployments.
var demoAccounts = []struct {
	username string
	enabled  bool
}{
	{"admin", true},
	{"user", true},
	{"test", true},
	{"disabled_user", false},
}

// SeedDemoAccounts creates the demo accounts on first boot if no accounts
// exist. The credentials are logged — demo deployments only, never expose
// a seeded instance publicly.
func SeedDemoAccounts(ctx context.Context, svc *Service, logger *slog.Logger) error {
	count, err := svc.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking account count: %w", err)
	}

	if count > 0 {
		logger.Info("accounts exist, skipping demo seed")
		return nil
	}

	for _, acc := range demoAccounts {
		if err := svc.CreateAccount(ctx, acc.username, demoPassword, acc.enabled); err != nil {
			return fmt.Errorf("creating demo account %q: %w", acc.username, err)
		}
		logger.Info("demo account created",
			"username", acc.username,
			"enabled", acc.enabled,
		)
	}

	logger.Warn("demo accounts seeded with a shared default password",
		"password", demoPassword,
		"action_required", "change or disable these accounts before production use",
	)

	return nil
}
