package util

import (
	"testing"
)

type voiceState struct {
	userID    string
	channelID string
}

func TestFindFirst(t *testing.T) {
	states := []voiceState{
		{userID: "u1", channelID: "lobby"},
		{userID: "u2", channelID: "music"},
		{userID: "u2", channelID: "stale"},
	}

	tests := []struct {
		name     string
		slice    []voiceState
		userID   string
		expected voiceState
		found    bool
	}{
		{
			name:     "member in voice",
			slice:    states,
			userID:   "u1",
			expected: voiceState{userID: "u1", channelID: "lobby"},
			found:    true,
		},
		{
			name:     "earliest match wins",
			slice:    states,
			userID:   "u2",
			expected: voiceState{userID: "u2", channelID: "music"},
			found:    true,
		},
		{
			name:   "member not in voice",
			slice:  states,
			userID: "u3",
			found:  false,
		},
		{
			name:   "empty guild",
			slice:  nil,
			userID: "u1",
			found:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, found := FindFirst(tt.slice, func(s voiceState) bool { return s.userID == tt.userID })
			if result != tt.expected || found != tt.found {
				t.Errorf("FindFirst() = (%v, %v), want (%v, %v)", result, found, tt.expected, tt.found)
			}
		})
	}
}
