// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package feed

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Host media types.
const (
	mediaTypePicture = 2
	mediaTypeVideo   = 4
	mediaTypeUnknown = 9
)

const liveStatusOn = 1

// Normalize converts a raw host feed object into a CandidateItem. It returns
// false for objects that carry nothing downloadable or displayable.
func Normalize(raw map[string]any) (*CandidateItem, bool) {
	if raw == nil {
		return nil, false
	}
	desc := mapAt(raw, "objectDesc")
	contact := contactOf(raw)

	if live := mapAt(raw, "liveInfo"); live != nil && num(live["liveStatus"]) == liveStatusOn {
		title := firstNonEmpty(str(live["description"]), str(desc["description"]), "Live")
		cover := str(live["coverUrl"])
		if cover == "" {
			cover = str(firstMedia(desc)["thumbUrl"])
		}
		return &CandidateItem{
			ID:          str(raw["id"]),
			NonceID:     str(raw["objectNonceId"]),
			Kind:        KindLive,
			Title:       CleanTitle(title),
			CoverURL:    cover,
			ThumbURL:    str(live["coverUrl"]),
			Nickname:    nickname(contact),
			Contact:     contact,
			CreateTime:  int64(num(raw["createtime"])),
			CanDownload: false,
			Raw:         raw,
		}, true
	}

	if desc == nil {
		return nil, false
	}
	mediaType := int(num(desc["mediaType"]))
	if mediaType == mediaTypeUnknown {
		return nil, false
	}
	media := firstMedia(desc)
	if media == nil {
		return nil, false
	}

	switch mediaType {
	case mediaTypePicture:
		return &CandidateItem{
			ID:         str(raw["id"]),
			NonceID:    str(raw["objectNonceId"]),
			Kind:       KindPicture,
			Title:      CleanTitle(str(desc["description"])),
			CoverURL:   str(media["coverUrl"]),
			Nickname:   nickname(contact),
			Contact:    contact,
			CreateTime: int64(num(raw["createtime"])),
			Raw:        raw,
		}, true
	case mediaTypeVideo:
		specs := specsOf(media)
		var duration int64
		if len(specs) > 0 && specs[0].DurationMs > 0 {
			duration = specs[0].DurationMs
		} else if secs := num(media["videoPlayLen"]); secs > 0 {
			duration = int64(secs * 1000)
		}
		return &CandidateItem{
			ID:          str(raw["id"]),
			NonceID:     str(raw["objectNonceId"]),
			Kind:        KindMedia,
			Title:       CleanTitle(str(desc["description"])),
			URL:         str(media["url"]) + str(media["urlToken"]),
			DecryptKey:  str(media["decodeKey"]),
			SizeBytes:   int64(num(media["fileSize"])),
			DurationMs:  duration,
			CoverURL:    str(media["thumbUrl"]),
			ThumbURL:    str(media["thumbUrl"]),
			Nickname:    nickname(contact),
			Contact:     contact,
			CreateTime:  int64(num(raw["createtime"])),
			Spec:        specs,
			CanDownload: true,
			Raw:         raw,
		}, true
	default:
		return nil, false
	}
}

// NormalizeReplay converts a finished live broadcast from a profile listing
// into a downloadable replay item.
func NormalizeReplay(raw map[string]any) (*CandidateItem, bool) {
	desc := mapAt(raw, "objectDesc")
	if desc == nil {
		return nil, false
	}
	media := firstMedia(desc)
	item := &CandidateItem{
		ID:          str(raw["id"]),
		NonceID:     str(raw["objectNonceId"]),
		Kind:        KindLiveReplay,
		Title:       CleanTitle(str(desc["description"])),
		Contact:     contactOf(raw),
		CreateTime:  int64(num(raw["createtime"])),
		CanDownload: true,
		Raw:         raw,
	}
	item.Nickname = nickname(item.Contact)
	if media != nil {
		item.URL = str(media["url"]) + str(media["urlToken"])
		item.DecryptKey = str(media["decodeKey"])
		item.SizeBytes = int64(num(media["fileSize"]))
		item.ThumbURL = str(media["thumbUrl"])
		item.CoverURL = firstNonEmpty(str(media["thumbUrl"]), str(media["coverUrl"]))
		item.Spec = specsOf(media)
		if len(item.Spec) > 0 {
			item.DurationMs = item.Spec[0].DurationMs
		}
	}
	if item.DurationMs == 0 {
		item.DurationMs = int64(num(mapAt(raw, "liveInfo")["duration"]))
	}
	if item.URL == "" {
		item.CanDownload = false
	}
	return item, true
}

// CleanTitle strips markup from a host description and returns its trimmed,
// NFC-normalized text content.
func CleanTitle(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(norm.NFC.String(b.String()))
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func firstMedia(desc map[string]any) map[string]any {
	list, _ := desc["media"].([]any)
	if len(list) == 0 {
		return nil
	}
	m, _ := list[0].(map[string]any)
	return m
}

func specsOf(media map[string]any) []Spec {
	list, _ := media["spec"].([]any)
	if len(list) == 0 {
		return nil
	}
	out := make([]Spec, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Spec{
			FileFormat: str(m["fileFormat"]),
			Width:      int(num(m["width"])),
			Height:     int(num(m["height"])),
			DurationMs: int64(num(m["durationMs"])),
			Bypass:     str(m["bypass"]),
		})
	}
	return out
}

func contactOf(raw map[string]any) *Contact {
	c := mapAt(raw, "contact")
	if c == nil {
		return nil
	}
	return &Contact{
		ID:        str(c["username"]),
		Nickname:  CleanTitle(str(c["nickname"])),
		AvatarURL: str(c["headUrl"]),
	}
}

func nickname(c *Contact) string {
	if c == nil {
		return ""
	}
	return c.Nickname
}

func mapAt(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return ""
	}
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
