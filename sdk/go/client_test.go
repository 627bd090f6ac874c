package stridesdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stride/internal/app"
	"stride/internal/config"
	"stride/internal/db"
	"stride/internal/engine"
	"stride/internal/migrate"
	"stride/internal/server"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	cfg := config.Default("coe")
	e := engine.New(conn, cfg)
	require.NoError(t, app.SeedConfig(context.Background(), e.Repo, cfg))
	require.NoError(t, app.GrantRole(context.Background(), e.Repo, "sdk-user", config.RoleAdmin))
	handler, err := server.New(server.Config{
		Engine: e,
		Auth:   server.AuthConfig{AllowLegacyActorHeader: true},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(withActorHeader(handler, "sdk-user"))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func withActorHeader(next http.Handler, actorID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("X-Actor-Id", actorID)
		next.ServeHTTP(w, r)
	})
}

func TestClientLifecycle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	req, err := c.CreateRequirement(ctx, NewRequirement{Title: "Grip aid", Description: "Built-up handle", SourceType: "SEN"})
	require.NoError(t, err)
	assert.Equal(t, "S1", req.CurrentState)

	next, err := c.NextStates(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "S2", next[0].ID)

	req, err = c.AdvanceRequirement(ctx, req.ID, Advance{
		To:        "S2",
		Notes:     "ok",
		Gates:     map[string]bool{"title_complete": true, "source_identified": true, "description_present": true},
		PhaseData: map[string]string{"reviewer_name": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "S2", req.CurrentState)

	got, err := c.GetRequirement(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)

	page, err := c.ListRequirements(ctx, "S2", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	aging, err := c.Aging(ctx)
	require.NoError(t, err)
	assert.Empty(t, aging)

	events, err := c.EventsPage(ctx, 10, "")
	require.NoError(t, err)
	assert.Len(t, events.Items, 2)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	req, err := c.CreateRequirement(ctx, NewRequirement{Title: "Grip aid", SourceType: "SEN"})
	require.NoError(t, err)

	_, err = c.AssignPath(ctx, req.ID, "INTERNAL", "fast")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)
}
