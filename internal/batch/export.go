// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package batch

import (
	"encoding/json"
	"io"
	"regexp"

	"github.com/ManuGH/wxbridge/internal/feed"
)

// ExportEntry is one row of the exported item list.
type ExportEntry struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	SourceType string      `json:"sourceType"`
	CgiID      string      `json:"cgiId"`
	URL        string      `json:"url"`
	Key        string      `json:"key"`
	CoverURL   string      `json:"coverUrl"`
	DurationMs int64       `json:"duration"`
	SizeBytes  int64       `json:"size"`
	Nickname   string      `json:"nickname"`
	CreateTime int64       `json:"createtime"`
	Spec       []feed.Spec `json:"spec"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
}

var cgiIDPattern = regexp.MustCompile(`"?cgi_id"?:(\d+)`)

// Known host request ids found in a spec's bypass blob.
const (
	cgiRecommend = "6638"
	cgiOther     = "8060"
)

// ExportJSON writes the whole list as an indented JSON array and returns the
// number of entries.
func (c *Catalog) ExportJSON(w io.Writer) (int, error) {
	items := c.Items()
	entries := make([]ExportEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, exportEntry(it))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return len(entries), enc.Encode(entries)
}

func exportEntry(it feed.CandidateItem) ExportEntry {
	e := ExportEntry{
		ID:         it.ID,
		Title:      it.Title,
		URL:        it.URL,
		Key:        it.DecryptKey,
		CoverURL:   it.CoverURL,
		DurationMs: it.DurationMs,
		SizeBytes:  it.SizeBytes,
		Nickname:   it.Nickname,
		CreateTime: it.CreateTime,
		Spec:       it.Spec,
	}
	if e.Title == "" {
		e.Title = "untitled"
	}
	if e.CoverURL == "" {
		e.CoverURL = it.ThumbURL
	}
	if e.Nickname == "" && it.Contact != nil {
		e.Nickname = it.Contact.Nickname
	}
	if e.Spec == nil {
		e.Spec = []feed.Spec{}
	}
	if len(it.Spec) > 0 {
		e.Width, e.Height = it.Spec[0].Width, it.Spec[0].Height
		e.CgiID, e.SourceType = sourceOf(it.Spec[0].Bypass)
	}
	return e
}

func sourceOf(bypass string) (cgiID, source string) {
	m := cgiIDPattern.FindStringSubmatch(bypass)
	if m == nil {
		return "", ""
	}
	switch m[1] {
	case cgiRecommend:
		return m[1], "Home"
	case cgiOther:
		return m[1], "Other"
	default:
		return m[1], "Unknown_" + m[1]
	}
}
