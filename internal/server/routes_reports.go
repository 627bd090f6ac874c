package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"stride/internal/config"
	"stride/internal/domain"
	"stride/internal/engine"
	"stride/internal/lifecycle"
	"stride/internal/repo"
)

func (h handlers) registerCatalog(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-states",
		Method:      http.MethodGet,
		Path:        "/states",
		Summary:     "State registry, transition table and attribute enums",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatesResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		edges := []EdgeResponse{}
		for _, e := range lifecycle.Edges() {
			edges = append(edges, EdgeResponse{From: e.From, To: e.To, Revision: lifecycle.IsRevisionEdge(e.From, e.To)})
		}
		return &struct {
			Body StatesResponse `json:"body"`
		}{Body: StatesResponse{
			States: lifecycle.States(),
			Edges:  edges,
			Enums: map[string][]string{
				"source_type":      domain.SourceTypes,
				"priority":         domain.Priorities,
				"tech_level":       domain.TechLevels,
				"therapy_domains":  domain.TherapyDomains,
				"disability_types": domain.DisabilityTypes,
				"gap_flags":        domain.GapFlags,
				"recommendation":   domain.Recommendations,
			},
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-catalog",
		Method:      http.MethodGet,
		Path:        "/catalog",
		Summary:     "Gate criteria and phase fields for one edge",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		From string `query:"from" required:"true"`
		To   string `query:"to" required:"true"`
	}) (*struct {
		Body CatalogResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		if !lifecycle.IsKnown(input.From) || !lifecycle.IsKnown(input.To) {
			return nil, handleError(lifecycle.Errorf(lifecycle.KindInvalidInput, "unknown state in %s->%s", input.From, input.To))
		}
		gates := lifecycle.GateCriteria(input.From, input.To)
		if gates == nil {
			gates = []lifecycle.Criterion{}
		}
		fields := lifecycle.PhaseFields(input.From, input.To)
		if fields == nil {
			fields = []lifecycle.Field{}
		}
		return &struct {
			Body CatalogResponse `json:"body"`
		}{Body: CatalogResponse{From: input.From, To: input.To, Gates: gates, Fields: fields}}, nil
	})
}

func (h handlers) registerReports(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "aging-report",
		Method:      http.MethodGet,
		Path:        "/aging",
		Summary:     "Requirements past their phase threshold",
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.AgingEntry `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		items, err := h.engine.AgingReport(ctx, h.now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []engine.AgingEntry `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pipeline-counts",
		Method:      http.MethodGet,
		Path:        "/counts",
		Summary:     "Requirement counts by state and phase",
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.PipelineCounts `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermRequirementRead); err != nil {
			return nil, err
		}
		counts, err := h.engine.Counts(ctx, h.now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.PipelineCounts `json:"body"`
		}{Body: counts}, nil
	})
}

func (h handlers) registerEvents(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, h.rbac, config.PermEventsRead); err != nil {
			return nil, err
		}
		var before int64
		if input.Cursor != "" {
			v, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || v <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", nil)
			}
			before = v
		}
		limit := normalizeLimit(input.Limit)
		items, err := h.engine.Repo.LatestEvents(ctx, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      limit,
			Before:     before,
		})
		if err != nil {
			return nil, handleError(err)
		}
		res := paginatedEvents{Items: []EventResponse{}}
		for _, evt := range items {
			res.Items = append(res.Items, eventResponse(evt))
		}
		if len(items) == limit {
			res.NextCursor = strconv.FormatInt(items[len(items)-1].ID, 10)
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: res}, nil
	})
}
