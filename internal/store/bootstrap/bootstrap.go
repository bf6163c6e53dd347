// Package bootstrap selects the storage backend at process start and
// ensures it is ready to receive data. Any error here is fatal: the
// process must not serve requests against an unprepared backend.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ciata/ciata-cms/internal/config"
	"github.com/ciata/ciata-cms/internal/models"
	"github.com/ciata/ciata-cms/internal/store"
	"github.com/ciata/ciata-cms/internal/store/filestore"
	"github.com/ciata/ciata-cms/internal/store/postgres"
	"github.com/ciata/ciata-cms/internal/users"
	"github.com/ciata/ciata-cms/pkg/logger"
)

// Open picks the backend from configuration (Postgres when DATABASE_URL
// is set, otherwise the flat file) and returns it with a short name for
// logging. The choice is made once; there is no runtime switching.
func Open(ctx context.Context, cfg *config.Config) (store.Store, string, error) {
	if cfg.Storage.DatabaseURL != "" {
		st, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres backend: %w", err)
		}
		return st, "postgres", nil
	}
	st, err := filestore.Open(cfg.Storage.DataFile)
	if err != nil {
		return nil, "", fmt.Errorf("open file backend: %w", err)
	}
	return st, "file", nil
}

// Seed creates the seed admin account when no users exist yet. Running it
// against an initialized backend is a no-op, so bootstrap stays idempotent.
func Seed(ctx context.Context, st store.Store, admin config.AdminConfig) error {
	n, err := st.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	svc := users.NewService(st)
	if _, err := svc.Create(ctx, admin.Username, admin.Password, models.RoleAdmin, nil); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	logger.Infof("created seed admin user %q", admin.Username)
	return nil
}
