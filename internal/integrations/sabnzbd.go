package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// SABnzbd is a client for the SABnzbd download manager. Its API is a single
// endpoint switched by a mode parameter, with the key passed per request.
type SABnzbd struct {
	api *apiClient
	key string
}

// NewSABnzbd creates a SABnzbd client for the given base URL and API key.
func NewSABnzbd(baseURL, apiKey string) *SABnzbd {
	return &SABnzbd{api: newAPIClient(baseURL, nil), key: apiKey}
}

// Attach registers the SABnzbd tools.
func (s *SABnzbd) Attach(r *Registry) {
	r.RegisterService("sabnzbd", "SABnzbd")

	r.Register(&Tool{
		Name:        "get_queue",
		Service:     "sabnzbd",
		Description: "Show the SABnzbd download queue: active downloads, speed and time remaining.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: s.handleGetQueue,
	})

	r.Register(&Tool{
		Name:        "pause_queue",
		Service:     "sabnzbd",
		Description: "Pause all SABnzbd downloads.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: s.handlePauseQueue,
	})

	r.Register(&Tool{
		Name:        "resume_queue",
		Service:     "sabnzbd",
		Description: "Resume SABnzbd downloads after a pause.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: s.handleResumeQueue,
	})

	r.Register(&Tool{
		Name:        "get_history",
		Service:     "sabnzbd",
		Description: "List recently finished SABnzbd downloads and whether they succeeded.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of entries to return (default 10)",
				},
			},
		},
		Handler: s.handleGetHistory,
	})
}

func (s *SABnzbd) call(ctx context.Context, mode string, extra url.Values, result any) error {
	vals := url.Values{}
	vals.Set("mode", mode)
	vals.Set("output", "json")
	vals.Set("apikey", s.key)
	for k, vs := range extra {
		for _, v := range vs {
			vals.Add(k, v)
		}
	}
	return s.api.getJSON(ctx, "/api", vals, result)
}

// SABnzbd reports most numbers as strings; they are passed through as-is.
type sabQueueResponse struct {
	Queue struct {
		Status   string    `json:"status"`
		Paused   bool      `json:"paused"`
		Speed    string    `json:"speed"`
		MBLeft   string    `json:"mbleft"`
		TimeLeft string    `json:"timeleft"`
		Slots    []sabSlot `json:"slots"`
	} `json:"queue"`
}

type sabSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	MBLeft     string `json:"mbleft"`
	TimeLeft   string `json:"timeleft"`
	Category   string `json:"cat"`
}

func (s *SABnzbd) handleGetQueue(ctx context.Context, args map[string]any) (map[string]any, error) {
	var resp sabQueueResponse
	if err := s.call(ctx, "queue", nil, &resp); err != nil {
		return nil, err
	}

	slots := make([]any, 0, len(resp.Queue.Slots))
	for _, slot := range resp.Queue.Slots {
		slots = append(slots, map[string]any{
			"id":         slot.NzoID,
			"name":       slot.Filename,
			"status":     slot.Status,
			"percentage": slot.Percentage,
			"mb_left":    slot.MBLeft,
			"time_left":  slot.TimeLeft,
			"category":   slot.Category,
		})
	}
	return map[string]any{
		"status":     resp.Queue.Status,
		"paused":     resp.Queue.Paused,
		"speed":      resp.Queue.Speed,
		"mb_left":    resp.Queue.MBLeft,
		"time_left":  resp.Queue.TimeLeft,
		"slots":      slots,
		"slot_count": len(slots),
	}, nil
}

type sabCommandResponse struct {
	Status bool   `json:"status"`
	Error  string `json:"error"`
}

func (s *SABnzbd) handlePauseQueue(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := s.command(ctx, "pause"); err != nil {
		return nil, err
	}
	return map[string]any{"paused": true}, nil
}

func (s *SABnzbd) handleResumeQueue(ctx context.Context, args map[string]any) (map[string]any, error) {
	if err := s.command(ctx, "resume"); err != nil {
		return nil, err
	}
	return map[string]any{"paused": false}, nil
}

func (s *SABnzbd) command(ctx context.Context, mode string) error {
	var resp sabCommandResponse
	if err := s.call(ctx, mode, nil, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("sabnzbd rejected %s: %s", mode, resp.Error)
	}
	return nil
}

type sabHistoryResponse struct {
	History struct {
		NoOfSlots int `json:"noofslots"`
		Slots     []struct {
			Name        string `json:"name"`
			Status      string `json:"status"`
			Size        string `json:"size"`
			Category    string `json:"category"`
			FailMessage string `json:"fail_message"`
			Completed   int64  `json:"completed"`
		} `json:"slots"`
	} `json:"history"`
}

func (s *SABnzbd) handleGetHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	extra := url.Values{}
	extra.Set("start", "0")
	extra.Set("limit", strconv.Itoa(argInt(args, "limit", 10)))

	var resp sabHistoryResponse
	if err := s.call(ctx, "history", extra, &resp); err != nil {
		return nil, err
	}

	items := make([]any, 0, len(resp.History.Slots))
	for _, slot := range resp.History.Slots {
		item := map[string]any{
			"name":      slot.Name,
			"status":    slot.Status,
			"size":      slot.Size,
			"category":  slot.Category,
			"completed": slot.Completed,
		}
		if slot.FailMessage != "" {
			item["fail_message"] = slot.FailMessage
		}
		items = append(items, item)
	}
	return map[string]any{
		"items": items,
		"total": resp.History.NoOfSlots,
	}, nil
}
