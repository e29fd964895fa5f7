// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import "fmt"

// Phase is the coarse connection lifecycle position.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Reconnecting
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of the connection. Port is set while Connecting and
// Connected; Attempt identifies the dial attempt while Connecting.
type State struct {
	Phase   Phase  `json:"-"`
	Name    string `json:"phase"`
	Port    int    `json:"port,omitempty"`
	Attempt uint64 `json:"attempt,omitempty"`
}

func newState(p Phase, port int, attempt uint64) State {
	return State{Phase: p, Name: p.String(), Port: port, Attempt: attempt}
}

func (s State) String() string {
	switch s.Phase {
	case Connecting:
		return fmt.Sprintf("connecting(port=%d, attempt=%d)", s.Port, s.Attempt)
	case Connected:
		return fmt.Sprintf("connected(port=%d)", s.Port)
	default:
		return s.Phase.String()
	}
}
