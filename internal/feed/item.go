// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package feed turns raw host feed objects into downloadable candidate items.
package feed

import "encoding/json"

// Kind classifies a candidate item.
type Kind string

const (
	KindMedia      Kind = "media"
	KindLive       Kind = "live"
	KindLiveReplay Kind = "live_replay"
	KindPicture    Kind = "picture"
)

// Spec is one encoding variant of a media item.
type Spec struct {
	FileFormat string `json:"fileFormat,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Bypass     string `json:"bypass,omitempty"`
}

// Contact is the author of an item.
type Contact struct {
	ID        string `json:"id,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// CandidateItem is a downloadable unit discovered in the host page.
type CandidateItem struct {
	ID          string   `json:"id"`
	NonceID     string   `json:"nonce_id,omitempty"`
	Kind        Kind     `json:"type"`
	Title       string   `json:"title"`
	URL         string   `json:"url,omitempty"`
	DecryptKey  string   `json:"key,omitempty"`
	SizeBytes   int64    `json:"size,omitempty"`
	DurationMs  int64    `json:"duration,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
	ThumbURL    string   `json:"thumbUrl,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
	CreateTime  int64    `json:"createtime,omitempty"`
	Spec        []Spec   `json:"spec,omitempty"`
	CanDownload bool     `json:"canDownload"`

	// Raw keeps the host object so the item can be normalized again later.
	Raw map[string]any `json:"raw,omitempty"`
}

// UnmarshalJSON treats a missing canDownload as downloadable; only an explicit
// false opts an item out.
func (c *CandidateItem) UnmarshalJSON(data []byte) error {
	type plain CandidateItem
	p := plain{CanDownload: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CandidateItem(p)
	return nil
}

// Normalized reports whether the item already carries a download shape.
func (c CandidateItem) Normalized() bool {
	return c.URL != ""
}

// Author returns the display name used for downloads.
func (c CandidateItem) Author() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	if c.Contact != nil && c.Contact.Nickname != "" {
		return c.Contact.Nickname
	}
	return "unknown"
}
