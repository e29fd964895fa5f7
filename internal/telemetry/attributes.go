// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans across packages.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	BridgePortKey    = "bridge.port"
	BridgeCallIDKey  = "bridge.call_id"
	BridgeCallKeyKey = "bridge.call_key"

	DownloadRunIDKey  = "download.run_id"
	DownloadItemIDKey = "download.item_id"
	DownloadIndexKey  = "download.index"
	DownloadTotalKey  = "download.total"

	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// CallAttributes describes one inbound api_call.
func CallAttributes(id, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(BridgeCallIDKey, id),
		attribute.String(BridgeCallKeyKey, key),
	}
}

// DownloadAttributes describes one item of a download run.
func DownloadAttributes(runID, itemID string, index, total int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if runID != "" {
		attrs = append(attrs, attribute.String(DownloadRunIDKey, runID))
	}
	if itemID != "" {
		attrs = append(attrs, attribute.String(DownloadItemIDKey, itemID))
	}
	return append(attrs,
		attribute.Int(DownloadIndexKey, index),
		attribute.Int(DownloadTotalKey, total),
	)
}

// ErrorAttributes classifies a failed span.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errType)}
}
