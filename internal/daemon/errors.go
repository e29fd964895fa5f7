// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingConfig is returned when the app is bootstrapped without a config holder.
	ErrMissingConfig = errors.New("config holder is required")

	// ErrMissingConnector is returned when Run is called on an app with no connector.
	ErrMissingConnector = errors.New("connector is required")
)
