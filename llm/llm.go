// Package llm defines the language-model collaborator surface consumed
// by the chat plugins: assistant responses keyed by a conversation
// owner, text-to-speech, and speech-to-text.
package llm

import (
	"context"

	"github.com/linj121/convo/im"
)

// AssistantName identifies one of the pre-configured assistants.
type AssistantName string

const (
	AssistantDefault      AssistantName = "default"
	AssistantHabitTracker AssistantName = "habit_tracker"
)

// Client is the request/response service the plugins consume. The owner
// key is the conversation scope (group topic or contact name) used to
// correlate stateful assistant context across messages.
type Client interface {
	GenerateResponse(ctx context.Context, owner, text string) (string, error)
	TextToSpeech(ctx context.Context, text, filename string) (*im.FileBox, error)
	SpeechToText(ctx context.Context, box *im.FileBox) (string, error)
}
