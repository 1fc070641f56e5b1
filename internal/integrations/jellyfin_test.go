package integrations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJellyfin_SearchLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Items", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "dune", r.URL.Query().Get("searchTerm"))
		assert.Equal(t, "Movie,Series", r.URL.Query().Get("includeItemTypes"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Items": [
				{"Id": "f27caa37e5142225cceded48f6553502", "Name": "Dune", "Type": "Movie", "ProductionYear": 2021}
			],
			"TotalRecordCount": 1
		}`))
	}))
	defer srv.Close()

	registry := newTestRegistry(t)
	NewJellyfin(srv.URL, "test-key").Attach(registry)

	result, err := registry.Execute(context.Background(), "jellyfin_search_library",
		map[string]any{"query": "dune"})
	assert.NoError(t, err)
	assert.Equal(t, 1, result["total"])

	items := result["items"].([]any)
	item := items[0].(map[string]any)
	assert.Equal(t, "Dune", item["name"])
	assert.Equal(t, "Movie", item["type"])
	assert.Equal(t, 2021, item["year"])
}

func TestJellyfin_GetSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Sessions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"Id": "abc1",
				"UserName": "kris",
				"Client": "Jellyfin Web",
				"DeviceName": "living-room-tv",
				"NowPlayingItem": {"Name": "Dune", "Type": "Movie"},
				"PlayState": {"IsPaused": true}
			},
			{
				"Id": "abc2",
				"UserName": "guest",
				"Client": "Jellyfin Mobile",
				"DeviceName": "phone",
				"PlayState": {"IsPaused": false}
			}
		]`))
	}))
	defer srv.Close()

	registry := newTestRegistry(t)
	NewJellyfin(srv.URL, "test-key").Attach(registry)

	result, err := registry.Execute(context.Background(), "jellyfin_get_sessions", nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, result["active_streams"])

	sessions := result["sessions"].([]any)
	assert.Len(t, sessions, 2)

	watching := sessions[0].(map[string]any)
	assert.Equal(t, "Dune", watching["now_playing"])
	assert.Equal(t, true, watching["paused"])

	idle := sessions[1].(map[string]any)
	assert.NotContains(t, idle, "now_playing")
}

func TestJellyfin_RefreshLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Library/Refresh", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	registry := newTestRegistry(t)
	NewJellyfin(srv.URL, "test-key").Attach(registry)

	result, err := registry.Execute(context.Background(), "jellyfin_refresh_library", nil)
	assert.NoError(t, err)
	assert.Equal(t, true, result["started"])
}
