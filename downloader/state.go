// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package downloader

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidStateTransition = errors.New("invalid state transition")

// State is a phase of a download round
type State struct {
	Id   uint
	Name string
}

func NewState(id uint, name string) State {
	return State{
		Id:   id,
		Name: name,
	}
}

func (s State) String() string {
	return s.Name
}

var (
	StateResolvingPeerAddresses      = NewState(1, "ResolvingPeerAddresses")
	StateAwaitingInventoryResponses  = NewState(2, "AwaitingInventoryResponses")
	StateAwaitingAttachmentResponses = NewState(3, "AwaitingAttachmentResponses")
	StateRoundComplete               = NewState(4, "RoundComplete")
)

type StateMapEntry struct {
	Transitions []State
}

type StateMap map[State]StateMapEntry

// Copy returns a copy of the state map
func (s StateMap) Copy() StateMap {
	ret := StateMap{}
	for k, v := range s {
		ret[k] = StateMapEntry{
			Transitions: slices.Clone(v.Transitions),
		}
	}
	return ret
}

// CanTransition returns true if the state map allows moving from one state to another
func (s StateMap) CanTransition(from State, to State) bool {
	entry, ok := s[from]
	if !ok {
		return false
	}
	return slices.Contains(entry.Transitions, to)
}

// RoundStateMap lists the allowed transitions of a download round. A round may
// end early when no peer resolves or its context is cancelled
var RoundStateMap = StateMap{
	StateResolvingPeerAddresses: StateMapEntry{
		Transitions: []State{
			StateAwaitingInventoryResponses,
			StateRoundComplete,
		},
	},
	StateAwaitingInventoryResponses: StateMapEntry{
		Transitions: []State{
			StateAwaitingAttachmentResponses,
			StateRoundComplete,
		},
	},
	StateAwaitingAttachmentResponses: StateMapEntry{
		Transitions: []State{
			StateRoundComplete,
		},
	},
	StateRoundComplete: StateMapEntry{
		Transitions: []State{
			StateResolvingPeerAddresses,
		},
	},
}

// roundState tracks the current phase of a round
type roundState struct {
	stateMap StateMap
	current  State
	visited  []State
}

func newRoundState() *roundState {
	return &roundState{
		stateMap: RoundStateMap,
		current:  StateResolvingPeerAddresses,
		visited:  []State{StateResolvingPeerAddresses},
	}
}

func (r *roundState) transition(next State) error {
	if !r.stateMap.CanTransition(r.current, next) {
		return fmt.Errorf(
			"%w: %s to %s",
			ErrInvalidStateTransition,
			r.current,
			next,
		)
	}
	r.current = next
	r.visited = append(r.visited, next)
	return nil
}
