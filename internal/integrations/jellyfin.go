package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Jellyfin is a client for the Jellyfin media server.
type Jellyfin struct {
	api *apiClient
}

// NewJellyfin creates a Jellyfin client for the given base URL and API key.
func NewJellyfin(baseURL, apiKey string) *Jellyfin {
	return &Jellyfin{
		api: newAPIClient(baseURL, map[string]string{"X-Emby-Token": apiKey}),
	}
}

// Attach registers the Jellyfin tools.
func (j *Jellyfin) Attach(r *Registry) {
	r.RegisterService("jellyfin", "Jellyfin")

	r.Register(&Tool{
		Name:        "search_library",
		Service:     "jellyfin",
		Description: "Search the Jellyfin library for movies and series already available for streaming.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The title to search for",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of items to return (default 10)",
				},
			},
			"required": []string{"query"},
		},
		Handler: j.handleSearchLibrary,
	})

	r.Register(&Tool{
		Name:        "get_sessions",
		Service:     "jellyfin",
		Description: "Show who is currently streaming from Jellyfin and what they are watching.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: j.handleGetSessions,
	})

	r.Register(&Tool{
		Name:        "refresh_library",
		Service:     "jellyfin",
		Description: "Trigger a Jellyfin library scan so newly downloaded media shows up.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: j.handleRefreshLibrary,
	})
}

type jellyfinItemsResponse struct {
	Items []struct {
		ID             string `json:"Id"`
		Name           string `json:"Name"`
		Type           string `json:"Type"`
		ProductionYear int    `json:"ProductionYear"`
	} `json:"Items"`
	TotalRecordCount int `json:"TotalRecordCount"`
}

func (j *Jellyfin) handleSearchLibrary(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	vals := url.Values{}
	vals.Set("searchTerm", query)
	vals.Set("recursive", "true")
	vals.Set("includeItemTypes", "Movie,Series")
	vals.Set("limit", strconv.Itoa(argInt(args, "limit", 10)))

	var resp jellyfinItemsResponse
	if err := j.api.getJSON(ctx, "/Items", vals, &resp); err != nil {
		return nil, err
	}

	items := make([]any, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, map[string]any{
			"id":   item.ID,
			"name": item.Name,
			"type": item.Type,
			"year": item.ProductionYear,
		})
	}
	return map[string]any{
		"items": items,
		"total": resp.TotalRecordCount,
	}, nil
}

type jellyfinSession struct {
	ID             string `json:"Id"`
	UserName       string `json:"UserName"`
	Client         string `json:"Client"`
	DeviceName     string `json:"DeviceName"`
	NowPlayingItem *struct {
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"NowPlayingItem"`
	PlayState struct {
		IsPaused bool `json:"IsPaused"`
	} `json:"PlayState"`
}

func (j *Jellyfin) handleGetSessions(ctx context.Context, args map[string]any) (map[string]any, error) {
	var resp []jellyfinSession
	if err := j.api.getJSON(ctx, "/Sessions", nil, &resp); err != nil {
		return nil, err
	}

	sessions := make([]any, 0, len(resp))
	active := 0
	for _, s := range resp {
		session := map[string]any{
			"id":     s.ID,
			"user":   s.UserName,
			"client": s.Client,
			"device": s.DeviceName,
		}
		if s.NowPlayingItem != nil {
			active++
			session["now_playing"] = s.NowPlayingItem.Name
			session["media_type"] = s.NowPlayingItem.Type
			session["paused"] = s.PlayState.IsPaused
		}
		sessions = append(sessions, session)
	}
	return map[string]any{
		"sessions":       sessions,
		"active_streams": active,
	}, nil
}

func (j *Jellyfin) handleRefreshLibrary(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := j.api.postJSON(ctx, "/Library/Refresh", nil, nil); err != nil {
		return nil, err
	}
	return map[string]any{"started": true}, nil
}
