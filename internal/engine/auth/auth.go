package auth

import (
	"context"
	"database/sql"
	"fmt"

	"stride/internal/config"
	"stride/internal/domain"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service resolves actor roles from the token role and the actor_roles table
// and checks them against the configured RBAC roles.
type Service struct {
	DB     *sql.DB
	Config *config.Config
}

// ActorRoles returns the roles granted to actorID in storage.
func (s Service) ActorRoles(ctx context.Context, actorID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT role_id FROM actor_roles WHERE actor_id=? ORDER BY role_id`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// EffectiveRoles merges the actor's claimed role with its stored roles.
func (s Service) EffectiveRoles(ctx context.Context, actor domain.Actor) ([]string, error) {
	stored, err := s.ActorRoles(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if actor.Role == "" {
		return stored, nil
	}
	for _, r := range stored {
		if r == actor.Role {
			return stored, nil
		}
	}
	return append([]string{actor.Role}, stored...), nil
}

func (s Service) ActorHasPermission(ctx context.Context, actor domain.Actor, perm string) (bool, error) {
	roles, err := s.EffectiveRoles(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if s.Config.RoleHasPermission(role, perm) {
			return true, nil
		}
	}
	return false, nil
}

// Require returns ForbiddenError when actor lacks perm.
func (s Service) Require(ctx context.Context, actor domain.Actor, perm string) error {
	ok, err := s.ActorHasPermission(ctx, actor, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

// ActorPermissions lists the distinct permissions across the actor's roles.
func (s Service) ActorPermissions(ctx context.Context, actor domain.Actor) ([]string, error) {
	roles, err := s.EffectiveRoles(ctx, actor)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var perms []string
	for _, role := range roles {
		if s.Config == nil {
			break
		}
		for _, p := range s.Config.RBAC.Roles[role].Permissions {
			if !seen[p] {
				seen[p] = true
				perms = append(perms, p)
			}
		}
	}
	return perms, nil
}

// CanAttestGates reports whether any of the actor's roles is a configured
// gate attestor.
func (s Service) CanAttestGates(ctx context.Context, actor domain.Actor) (bool, error) {
	roles, err := s.EffectiveRoles(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if s.Config.RoleCanAttest(role) {
			return true, nil
		}
	}
	return false, nil
}
