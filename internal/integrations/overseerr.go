package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Overseerr is a client for the Overseerr media request manager.
type Overseerr struct {
	api *apiClient
}

// NewOverseerr creates an Overseerr client for the given base URL and API key.
func NewOverseerr(baseURL, apiKey string) *Overseerr {
	return &Overseerr{
		api: newAPIClient(baseURL, map[string]string{"X-Api-Key": apiKey}),
	}
}

// Attach registers the Overseerr tools.
func (o *Overseerr) Attach(r *Registry) {
	r.RegisterService("overseerr", "Overseerr")

	r.Register(&Tool{
		Name:        "search_media",
		Service:     "overseerr",
		Description: "Search Overseerr for movies and TV shows by title. Use this to find the media ID before requesting something.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The title to search for",
				},
				"page": map[string]any{
					"type":        "integer",
					"description": "Result page, starting at 1",
				},
			},
			"required": []string{"query"},
		},
		Handler: o.handleSearch,
	})

	r.Register(&Tool{
		Name:        "request_media",
		Service:     "overseerr",
		Description: "Request a movie or TV show so the download pipeline picks it up. Needs the media ID from search_media.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"media_type": map[string]any{
					"type":        "string",
					"description": "Either movie or tv",
				},
				"media_id": map[string]any{
					"type":        "integer",
					"description": "The TMDB media ID",
				},
			},
			"required": []string{"media_type", "media_id"},
		},
		Handler: o.handleRequest,
	})

	r.Register(&Tool{
		Name:        "get_requests",
		Service:     "overseerr",
		Description: "List recent media requests and their approval status.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filter": map[string]any{
					"type":        "string",
					"description": "Filter requests: all, pending, approved or available",
				},
				"take": map[string]any{
					"type":        "integer",
					"description": "Maximum number of requests to return (default 20)",
				},
			},
		},
		Handler: o.handleGetRequests,
	})
}

type overseerrSearchResponse struct {
	Page         int                    `json:"page"`
	TotalResults int                    `json:"totalResults"`
	Results      []overseerrMediaResult `json:"results"`
}

type overseerrMediaResult struct {
	ID           int    `json:"id"`
	MediaType    string `json:"mediaType"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"releaseDate"`
	FirstAirDate string `json:"firstAirDate"`
	Overview     string `json:"overview"`
	MediaInfo    *struct {
		Status int `json:"status"`
	} `json:"mediaInfo"`
}

func (o *Overseerr) handleSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query", "")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	vals := url.Values{}
	vals.Set("query", query)
	vals.Set("page", strconv.Itoa(argInt(args, "page", 1)))

	var resp overseerrSearchResponse
	if err := o.api.getJSON(ctx, "/api/v1/search", vals, &resp); err != nil {
		return nil, err
	}

	results := make([]any, 0, len(resp.Results))
	for _, m := range resp.Results {
		title, date := m.Title, m.ReleaseDate
		if m.MediaType == "tv" {
			title, date = m.Name, m.FirstAirDate
		}
		item := map[string]any{
			"id":         m.ID,
			"media_type": m.MediaType,
			"title":      title,
			"year":       yearOf(date),
			"overview":   m.Overview,
		}
		if m.MediaInfo != nil {
			item["availability"] = mediaStatus(m.MediaInfo.Status)
		}
		results = append(results, item)
	}
	return map[string]any{
		"results":       results,
		"total_results": resp.TotalResults,
		"page":          resp.Page,
	}, nil
}

type overseerrRequestResponse struct {
	ID     int `json:"id"`
	Status int `json:"status"`
	Media  struct {
		TmdbID int `json:"tmdbId"`
	} `json:"media"`
}

func (o *Overseerr) handleRequest(ctx context.Context, args map[string]any) (map[string]any, error) {
	mediaType := argString(args, "media_type", "")
	if mediaType != "movie" && mediaType != "tv" {
		return nil, fmt.Errorf("media_type must be movie or tv")
	}
	mediaID := argInt(args, "media_id", 0)
	if mediaID == 0 {
		return nil, fmt.Errorf("media_id is required")
	}

	body := map[string]any{"mediaType": mediaType, "mediaId": mediaID}
	var resp overseerrRequestResponse
	if err := o.api.postJSON(ctx, "/api/v1/request", body, &resp); err != nil {
		return nil, err
	}

	return map[string]any{
		"request_id": resp.ID,
		"status":     requestStatus(resp.Status),
		"media_type": mediaType,
		"media_id":   mediaID,
	}, nil
}

type overseerrRequestsResponse struct {
	PageInfo struct {
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []struct {
		ID        int    `json:"id"`
		Status    int    `json:"status"`
		CreatedAt string `json:"createdAt"`
		Media     struct {
			MediaType string `json:"mediaType"`
			TmdbID    int    `json:"tmdbId"`
			Status    int    `json:"status"`
		} `json:"media"`
		RequestedBy struct {
			DisplayName string `json:"displayName"`
		} `json:"requestedBy"`
	} `json:"results"`
}

func (o *Overseerr) handleGetRequests(ctx context.Context, args map[string]any) (map[string]any, error) {
	vals := url.Values{}
	vals.Set("filter", argString(args, "filter", "all"))
	vals.Set("take", strconv.Itoa(argInt(args, "take", 20)))

	var resp overseerrRequestsResponse
	if err := o.api.getJSON(ctx, "/api/v1/request", vals, &resp); err != nil {
		return nil, err
	}

	requests := make([]any, 0, len(resp.Results))
	for _, req := range resp.Results {
		requests = append(requests, map[string]any{
			"id":           req.ID,
			"status":       requestStatus(req.Status),
			"media_type":   req.Media.MediaType,
			"media_id":     req.Media.TmdbID,
			"availability": mediaStatus(req.Media.Status),
			"requested_by": req.RequestedBy.DisplayName,
			"created_at":   req.CreatedAt,
		})
	}
	return map[string]any{
		"requests": requests,
		"total":    resp.PageInfo.Results,
	}, nil
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func requestStatus(code int) string {
	switch code {
	case 1:
		return "pending"
	case 2:
		return "approved"
	case 3:
		return "declined"
	default:
		return "unknown"
	}
}

func mediaStatus(code int) string {
	switch code {
	case 2:
		return "pending"
	case 3:
		return "processing"
	case 4:
		return "partially_available"
	case 5:
		return "available"
	default:
		return "unknown"
	}
}
