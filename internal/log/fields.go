// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldRequestID = "request_id"

	// Bridge fields
	FieldPort    = "port"
	FieldAttempt = "attempt"
	FieldURL     = "url"
	FieldCallID  = "call_id"
	FieldCallKey = "call_key"
	FieldAction  = "action"
	FieldState   = "state"

	// Download fields
	FieldRunID   = "run_id"
	FieldItemID  = "item_id"
	FieldTitle   = "title"
	FieldIndex   = "index"
	FieldTotal   = "total"
	FieldSuccess = "succeeded"
	FieldSkipped = "skipped"
	FieldFailed  = "failed"

	// Keystream fields
	FieldSeed = "seed"
	FieldPath = "path"
)
