package util_test

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/util"
)

func TestGetOne(t *testing.T) {
	clip := &discordgo.MessageAttachment{ID: "a1", Filename: "clip.mp4"}
	extra := &discordgo.MessageAttachment{ID: "a2", Filename: "extra.mov"}

	tc := []struct {
		name     string
		input    map[string]*discordgo.MessageAttachment
		expected *discordgo.MessageAttachment
		err      bool
	}{
		{
			name:     "single attachment",
			input:    map[string]*discordgo.MessageAttachment{"a1": clip},
			expected: clip,
		},
		{
			name:  "multiple attachments",
			input: map[string]*discordgo.MessageAttachment{"a1": clip, "a2": extra},
			err:   true,
		},
		{
			name:  "no attachments",
			input: map[string]*discordgo.MessageAttachment{},
			err:   true,
		},
		{
			name:  "nil map",
			input: nil,
			err:   true,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			result, err := util.GetOne(test.input)
			if test.err {
				if err == nil {
					t.Errorf("expected error but got %v", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != test.expected {
				t.Errorf("expected %v, got %v", test.expected.Filename, result.Filename)
			}
		})
	}
}
