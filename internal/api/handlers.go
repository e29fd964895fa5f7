// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/wxbridge/internal/batch"
	"github.com/ManuGH/wxbridge/internal/bridge"
	"github.com/ManuGH/wxbridge/internal/feed"
	"github.com/ManuGH/wxbridge/internal/host"
)

type stateResponse struct {
	Version    string       `json:"version"`
	Bridge     bridge.State `json:"bridge"`
	InFlight   int          `json:"in_flight"`
	Username   string       `json:"username,omitempty"`
	Items      int          `json:"items"`
	Selected   int          `json:"selected"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Download   batch.Status `json:"download"`
}

type pageResponse struct {
	Title      string               `json:"title,omitempty"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"page_size"`
	TotalPages int                  `json:"total_pages"`
	Total      int                  `json:"total"`
	Items      []feed.CandidateItem `json:"items"`
	Selected   []string             `json:"selected"`
}

// itemsRequest carries items either already normalized or as raw host feed objects.
type itemsRequest struct {
	Title string               `json:"title"`
	Items []feed.CandidateItem `json:"items"`
	Feeds []map[string]any     `json:"feeds"`
}

type selectionRequest struct {
	IDs      []string `json:"ids"`
	Page     int      `json:"page"`
	Selected *bool    `json:"selected"`
}

type downloadRequest struct {
	IDs   []string `json:"ids"`
	Force *bool    `json:"force"`
}

type eventRequest struct {
	Topic string         `json:"topic"`
	Data  map[string]any `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		Version:    s.cfg.Version,
		Items:      s.deps.Catalog.Len(),
		Selected:   len(s.deps.Catalog.Selected()),
		Page:       s.deps.Catalog.CurrentPage(),
		TotalPages: s.deps.Catalog.TotalPages(),
		Download:   s.deps.Orchestrator.Status(),
	}
	if s.deps.Bridge != nil {
		resp.Bridge = s.deps.Bridge.State()
		resp.InFlight = s.deps.Bridge.InFlight()
	}
	if s.deps.Identity != nil {
		resp.Username = s.deps.Identity.Username()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	c := s.deps.Catalog
	page := c.CurrentPage()
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
			return
		}
		page = c.SetPage(n)
	}
	items := c.Page(page)
	if items == nil {
		items = []feed.CandidateItem{}
	}
	selected := make([]string, 0, len(items))
	for _, it := range items {
		if c.IsSelected(it.ID) {
			selected = append(selected, it.ID)
		}
	}
	writeJSON(w, http.StatusOK, pageResponse{
		Title:      c.Title(),
		Page:       page,
		PageSize:   c.PageSize(),
		TotalPages: c.TotalPages(),
		Total:      c.Len(),
		Items:      items,
		Selected:   selected,
	})
}

func (s *Server) readItems(r *http.Request) (itemsRequest, []feed.CandidateItem, error) {
	var req itemsRequest
	if err := decodeBody(r, &req); err != nil {
		return req, nil, err
	}
	items := append([]feed.CandidateItem(nil), req.Items...)
	for _, raw := range req.Feeds {
		if it, ok := feed.Normalize(raw); ok {
			items = append(items, *it)
		}
	}
	return req, items, nil
}

func (s *Server) handleAppendItems(w http.ResponseWriter, r *http.Request) {
	_, items, err := s.readItems(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	added := s.deps.Catalog.Append(items)
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "total": s.deps.Catalog.Len()})
}

func (s *Server) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	req, items, err := s.readItems(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	n := s.deps.Catalog.SetItems(req.Title, items)
	writeJSON(w, http.StatusOK, map[string]int{"added": n, "total": s.deps.Catalog.Len()})
}

func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Catalog.Clear()
	if errors.Is(err, batch.ErrBusy) {
		writeError(w, r, http.StatusConflict, "download_running", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleExportItems(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog.Len() == 0 {
		writeError(w, r, http.StatusNotFound, "empty", "no items to export")
		return
	}
	name := fmt.Sprintf("batch_videos_%s.json", s.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	n, err := s.deps.Catalog.ExportJSON(w)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", "api.export_failed").Msg("item export interrupted")
		return
	}
	s.logger.Info().Str("event", "api.export").Int("count", n).Msg("item list exported")
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, http.StatusBadRequest, "missing_ids", "ids must not be empty")
		return
	}
	on := req.Selected == nil || *req.Selected
	for _, id := range req.IDs {
		s.deps.Catalog.Toggle(id, on)
	}
	writeJSON(w, http.StatusOK, map[string]int{"selected": len(s.deps.Catalog.Selected())})
}

func (s *Server) handleSelectPage(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Page > 0 {
		s.deps.Catalog.SetPage(req.Page)
	}
	on := req.Selected == nil || *req.Selected
	changed := s.deps.Catalog.SelectPage(on)
	writeJSON(w, http.StatusOK, map[string]int{
		"page":     s.deps.Catalog.CurrentPage(),
		"changed":  changed,
		"selected": len(s.deps.Catalog.Selected()),
	})
}

func (s *Server) handleDownloadStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orchestrator.Status())
}

func (s *Server) handleStartDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	items := s.deps.Catalog.Selected()
	if len(req.IDs) > 0 {
		items = items[:0:0]
		for _, id := range req.IDs {
			if it, ok := s.deps.Catalog.Get(id); ok {
				items = append(items, it)
			}
		}
	}
	force := s.deps.Orchestrator.ForceRedownload()
	if req.Force != nil {
		force = *req.Force
	}

	runID, err := s.deps.Orchestrator.Start(s.deps.RunContext, items, force)
	switch {
	case errors.Is(err, batch.ErrRunning):
		writeError(w, r, http.StatusConflict, "download_running", err.Error())
	case errors.Is(err, batch.ErrNothingToDownload):
		writeError(w, r, http.StatusUnprocessableEntity, "nothing_to_download", err.Error())
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
	}
}

func (s *Server) handleCancelDownload(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.deps.Orchestrator.Cancel()})
}

var eventTopics = map[string]bool{
	host.TopicInit:             true,
	host.TopicFeedLoaded:       true,
	host.TopicNavigation:       true,
	host.TopicDownloadProgress: true,
}

func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "events_disabled", "event relay not configured")
		return
	}
	var req eventRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if !eventTopics[req.Topic] {
		writeError(w, r, http.StatusBadRequest, "unknown_topic", fmt.Sprintf("unknown topic %q", req.Topic))
		return
	}
	if err := s.deps.Events.Publish(r.Context(), host.Event{Topic: req.Topic, Data: req.Data}); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "publish_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
