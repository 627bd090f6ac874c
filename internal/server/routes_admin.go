package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"stride/internal/app"
	"stride/internal/config"
)

func (h handlers) registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Caller identity, roles and permissions",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		actor := principal.Actor()
		roles, err := h.rbac.EffectiveRoles(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		perms, err := h.rbac.ActorPermissions(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		attest, err := h.rbac.CanAttestGates(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:        actor.ID,
			Source:         principal.Source,
			Roles:          nonNilSlice(roles),
			Permissions:    nonNilSlice(perms),
			CanAttestGates: attest,
		}}, nil
	})
}

func (h handlers) registerRBAC(api huma.API) {
	change := func(opID, path, summary string, apply func(ctx context.Context, actorID, roleID string) error) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
			Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
		}, func(ctx context.Context, input *struct {
			Body RoleChangeRequest `json:"body"`
		}) (*struct {
			Body map[string]string `json:"body"`
		}, error) {
			if _, err := requirePermission(ctx, h.rbac, config.PermRBACManage); err != nil {
				return nil, err
			}
			actorID := strings.TrimSpace(input.Body.ActorID)
			roleID := strings.TrimSpace(input.Body.RoleID)
			if actorID == "" || roleID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role_id are required", nil)
			}
			if err := apply(ctx, actorID, roleID); err != nil {
				return nil, newAPIError(http.StatusUnprocessableEntity, "invalid_input", err.Error(), nil)
			}
			return &struct {
				Body map[string]string `json:"body"`
			}{Body: map[string]string{"actor_id": actorID, "role_id": roleID}}, nil
		})
	}
	r := h.engine.Repo
	change("grant-role", "/rbac/roles/grant", "Grant a role to an actor", func(ctx context.Context, actorID, roleID string) error {
		return app.GrantRole(ctx, r, actorID, roleID)
	})
	change("revoke-role", "/rbac/roles/revoke", "Revoke a role from an actor", func(ctx context.Context, actorID, roleID string) error {
		return app.RevokeRole(ctx, r, actorID, roleID)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Issue an API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actor, err := requirePermission(ctx, h.rbac, config.PermAPIKeyManage)
		if err != nil {
			return nil, err
		}
		owner := strings.TrimSpace(input.Body.ActorID)
		if owner == "" {
			owner = actor.ID
		}
		now := time.Now().UTC().Format(time.RFC3339)
		tx, err := h.engine.DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, handleError(err)
		}
		defer tx.Rollback()
		if err := h.engine.Repo.EnsureActor(ctx, tx, owner, now); err != nil {
			return nil, handleError(err)
		}
		raw, key, err := h.engine.Repo.IssueAPIKey(ctx, tx, owner, input.Body.Name, now)
		if err != nil {
			return nil, handleError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: APIKeyResponse{ID: key.ID, ActorID: key.ActorID, Name: key.Name, Key: raw}}, nil
	})
}

func (h handlers) registerDevAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Issue a development JWT",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actorID := strings.TrimSpace(input.Body.ActorID)
		if actorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(h.auth.JWTSecret, actorID, strings.TrimSpace(input.Body.Role), h.auth.TokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
