// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package feed

import (
	"strconv"
	"time"
)

// DownloadRequest is the body of a download_video call.
type DownloadRequest struct {
	VideoURL   string `json:"videoUrl"`
	VideoID    string `json:"videoId"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Key        string `json:"key"`
	ForceSave  bool   `json:"forceSave"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FileFormat string `json:"fileFormat"`
}

// DownloadParams builds the download request for a normalized item. now
// provides the title of last resort for items with neither title nor id.
func DownloadParams(item CandidateItem, force bool, now time.Time) DownloadRequest {
	req := DownloadRequest{
		VideoURL:  item.URL,
		VideoID:   item.ID,
		Title:     firstNonEmpty(item.Title, item.ID, strconv.FormatInt(now.UnixMilli(), 10)),
		Author:    item.Author(),
		Key:       item.DecryptKey,
		ForceSave: force,
	}
	if len(item.Spec) > 0 {
		s := item.Spec[0]
		req.Width, req.Height, req.FileFormat = s.Width, s.Height, s.FileFormat
		if s.Width > 0 && s.Height > 0 {
			req.Resolution = strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
		}
	}
	return req
}
