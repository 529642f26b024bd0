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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundStateMapTransitions(t *testing.T) {
	testDefs := []struct {
		from     State
		to       State
		expected bool
	}{
		{StateResolvingPeerAddresses, StateAwaitingInventoryResponses, true},
		{StateResolvingPeerAddresses, StateRoundComplete, true},
		{StateResolvingPeerAddresses, StateAwaitingAttachmentResponses, false},
		{StateAwaitingInventoryResponses, StateAwaitingAttachmentResponses, true},
		{StateAwaitingInventoryResponses, StateResolvingPeerAddresses, false},
		{StateAwaitingAttachmentResponses, StateRoundComplete, true},
		{StateAwaitingAttachmentResponses, StateAwaitingInventoryResponses, false},
		{StateRoundComplete, StateResolvingPeerAddresses, true},
		{StateRoundComplete, StateAwaitingAttachmentResponses, false},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.expected,
			RoundStateMap.CanTransition(testDef.from, testDef.to),
			"%s to %s",
			testDef.from,
			testDef.to,
		)
	}
}

func TestStateMapUnknownState(t *testing.T) {
	unknown := NewState(99, "Unknown")
	assert.False(t, RoundStateMap.CanTransition(unknown, StateRoundComplete))
	assert.Equal(t, "Unknown", unknown.String())
}

func TestStateMapCopy(t *testing.T) {
	stateMap := RoundStateMap.Copy()
	entry := stateMap[StateRoundComplete]
	entry.Transitions[0] = StateRoundComplete
	stateMap[StateRoundComplete] = entry
	assert.True(
		t,
		RoundStateMap.CanTransition(StateRoundComplete, StateResolvingPeerAddresses),
		"modifying a copy must not change the original",
	)
	assert.Len(t, stateMap, len(RoundStateMap))
}

func TestRoundStateTransition(t *testing.T) {
	state := newRoundState()
	require.NoError(t, state.transition(StateAwaitingInventoryResponses))
	err := state.transition(StateResolvingPeerAddresses)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))
	require.NoError(t, state.transition(StateAwaitingAttachmentResponses))
	require.NoError(t, state.transition(StateRoundComplete))
	assert.Equal(
		t,
		[]State{
			StateResolvingPeerAddresses,
			StateAwaitingInventoryResponses,
			StateAwaitingAttachmentResponses,
			StateRoundComplete,
		},
		state.visited,
	)
}
