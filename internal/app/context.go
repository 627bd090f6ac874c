package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"stride/internal/config"
	"stride/internal/repo"
)

const defaultOrgID = "coe"

// ResolveConfig picks the active config and makes sure it is persisted with
// its RBAC rows. A stride.yml in the workspace wins over the stored copy; with
// neither, the built-in default is seeded.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	fileCfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := SeedConfig(ctx, r, fileCfg); err != nil {
			return nil, err
		}
		return fileCfg, nil
	}
	cfg, err := r.LatestOrgConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg = config.Default(defaultOrgID)
	if err := SeedConfig(ctx, r, cfg); err != nil {
		return nil, fmt.Errorf("seed default config: %w", err)
	}
	return cfg, nil
}

// SeedConfig stores cfg and syncs roles and permissions into the RBAC tables.
func SeedConfig(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.UpsertOrgConfigTx(ctx, tx, cfg.Org.ID, cfg); err != nil {
		return fmt.Errorf("store org config: %w", err)
	}
	roleIDs := make([]string, 0, len(cfg.RBAC.Roles))
	for id := range cfg.RBAC.Roles {
		roleIDs = append(roleIDs, id)
	}
	sort.Strings(roleIDs)
	for _, id := range roleIDs {
		role := cfg.RBAC.Roles[id]
		if err := r.InsertRole(ctx, tx, id, role.Description); err != nil {
			return fmt.Errorf("insert role %s: %w", id, err)
		}
		if err := r.ClearRolePermissions(ctx, tx, id); err != nil {
			return fmt.Errorf("clear role %s: %w", id, err)
		}
		for _, perm := range role.Permissions {
			if err := r.InsertPermission(ctx, tx, perm, ""); err != nil {
				return fmt.Errorf("insert permission %s: %w", perm, err)
			}
			if err := r.AddRolePermission(ctx, tx, id, perm); err != nil {
				return fmt.Errorf("grant %s to %s: %w", perm, id, err)
			}
		}
	}
	return tx.Commit()
}

// GrantRole records that actorID holds roleID.
func GrantRole(ctx context.Context, r repo.Repo, actorID, roleID string) error {
	ok, err := r.RoleExists(ctx, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unknown role %s", roleID)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.EnsureActor(ctx, tx, actorID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("ensure actor: %w", err)
	}
	if err := r.AssignRole(ctx, tx, actorID, roleID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return tx.Commit()
}

// RevokeRole removes roleID from actorID.
func RevokeRole(ctx context.Context, r repo.Repo, actorID, roleID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.RevokeRole(ctx, tx, actorID, roleID); err != nil {
		return err
	}
	return tx.Commit()
}
