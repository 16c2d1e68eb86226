package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/nerrad567/appaccess/internal/access"
)

const seedPasswordBytes = 16

// SeedAdmin creates the first admin account when no users exist and returns
// its generated password. It returns "" when seeding was skipped.
func SeedAdmin(ctx context.Context, svc *Service, email, name string, logger *slog.Logger) (string, error) {
	count, err := svc.users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Debug("users exist, skipping admin seed")
		return "", nil
	}

	b := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(b)

	if name == "" {
		name = "Administrator"
	}
	user, err := svc.CreateUser(ctx, Profile{Name: name, Email: email, Password: password}, access.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"email", user.Email,
		"password", password,
		"action_required", "change this password after first login",
	)
	return password, nil
}
