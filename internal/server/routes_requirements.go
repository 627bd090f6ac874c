package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/lifecycle"
)

type requirementIDInput struct {
	ID string `path:"id"`
}

func (h handlers) registerRequirements(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-requirement",
		Method:        http.MethodPost,
		Path:          "/requirements",
		Summary:       "Capture a requirement",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateRequirementRequest `json:"body"`
	}) (*struct {
		Body domain.Requirement `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, err := requirePermission(ctx, h.rbac, config.PermRequirementCreate)
		if err != nil {
			return nil, err
		}
		req, err := h.engine.CreateRequirement(ctx, actor, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Requirement `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-requirements",
		Method:      http.MethodGet,
		Path:        "/requirements",
		Summary:     "List requirements",
		Errors:      []int{http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		State    string `query:"state"`
		Phase    string `query:"phase"`
		Priority string `query:"priority"`
		Path     string `query:"path"`
		Limit    int    `query:"limit"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body RequirementPage `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		items, next, err := h.engine.ListRequirements(ctx, engine.ListOptions{
			State:    input.State,
			Phase:    input.Phase,
			Priority: input.Priority,
			Path:     input.Path,
			Limit:    normalizeLimit(input.Limit),
			Cursor:   input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Requirement{}
		}
		return &struct {
			Body RequirementPage `json:"body"`
		}{Body: RequirementPage{Items: items, NextCursor: next}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-requirement",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}",
		Summary:     "Get requirement with next states and aging",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requirementIDInput) (*struct {
		Body engine.Detail `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		detail, err := h.engine.Describe(ctx, input.ID, h.now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Detail `json:"body"`
		}{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-transitions",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}/transitions",
		Summary:     "Transition history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requirementIDInput) (*struct {
		Body []domain.StateTransition `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		items, err := h.engine.History(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.StateTransition{}
		}
		return &struct {
			Body []domain.StateTransition `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-feedback",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}/feedback",
		Summary:     "Phase feedback submitted with each transition",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requirementIDInput) (*struct {
		Body []domain.PhaseFeedback `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		items, err := h.engine.Feedback(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.PhaseFeedback{}
		}
		return &struct {
			Body []domain.PhaseFeedback `json:"body"`
		}{Body: items}, nil
	})
}

func (h handlers) registerLifecycle(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "next-states",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}/next-states",
		Summary:     "Permitted next states",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requirementIDInput) (*struct {
		Body []lifecycle.StateInfo `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		next, err := h.engine.NextStates(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if next == nil {
			next = []lifecycle.StateInfo{}
		}
		return &struct {
			Body []lifecycle.StateInfo `json:"body"`
		}{Body: next}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-requirement",
		Method:      http.MethodPost,
		Path:        "/requirements/{id}/advance",
		Summary:     "Advance a requirement to a permitted next state",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body AdvanceRequest `json:"body"`
	}) (*struct {
		Body domain.Requirement `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, err := requirePermission(ctx, h.rbac, config.PermRequirementAdvance)
		if err != nil {
			return nil, err
		}
		req, err := h.engine.Advance(ctx, input.ID, actor, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Requirement `json:"body"`
		}{Body: req}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-path",
		Method:      http.MethodPost,
		Path:        "/requirements/{id}/path",
		Summary:     "Assign the development path at S4",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AssignPathRequest `json:"body"`
	}) (*struct {
		Body domain.Requirement `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, err := requirePermission(ctx, h.rbac, config.PermPathAssign)
		if err != nil {
			return nil, err
		}
		req, err := h.engine.AssignPath(ctx, input.ID, actor, lifecycle.Path(input.Body.Path), input.Body.Justification)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Requirement `json:"body"`
		}{Body: req}, nil
	})
}

func (h handlers) registerReviews(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-review",
		Method:        http.MethodPost,
		Path:          "/requirements/{id}/reviews",
		Summary:       "Record a committee review",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body CreateReviewRequest `json:"body"`
	}) (*struct {
		Body domain.CommitteeReview `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor, err := requirePermission(ctx, h.rbac, config.PermReviewCreate)
		if err != nil {
			return nil, err
		}
		rv, err := h.engine.AddReview(ctx, input.ID, actor, input.Body.input())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CommitteeReview `json:"body"`
		}{Body: rv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/requirements/{id}/reviews",
		Summary:     "Committee reviews with summary",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *requirementIDInput) (*struct {
		Body engine.ReviewSummary `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermReviewRead); err != nil {
			return nil, err
		}
		sum, err := h.engine.Reviews(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ReviewSummary `json:"body"`
		}{Body: sum}, nil
	})
}
