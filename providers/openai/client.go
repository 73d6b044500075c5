// Package openai implements the llm.Client collaborator on the OpenAI
// assistants, speech, and transcription APIs. Assistant and thread
// identifiers survive restarts through the llmstore.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/internal/llmstore"
	"github.com/linj121/convo/llm"
)

// Options configures one assistant-backed client.
type Options struct {
	APIKey string
	// Model is the chat model backing the assistant.
	Model string
	// Assistant names this client's assistant in the store.
	Assistant llm.AssistantName
	// Instructions is the assistant's system prompt.
	Instructions string
	Store        *llmstore.Store
	Logger       *slog.Logger
}

// Client is one named assistant bound to the shared OpenAI API and the
// identifier store. It satisfies llm.Client.
type Client struct {
	api       openai.Client
	store     *llmstore.Store
	assistant llm.AssistantName
	model     string
	logger    *slog.Logger

	assistantID string
}

// New builds the client and ensures its assistant exists remotely,
// reusing the stored assistant ID when it is still valid.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if opts.Assistant == "" {
		return nil, fmt.Errorf("assistant name is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		api:       openai.NewClient(option.WithAPIKey(opts.APIKey)),
		store:     opts.Store,
		assistant: opts.Assistant,
		model:     opts.Model,
		logger:    logger,
	}
	if err := c.ensureAssistant(ctx, opts.Instructions); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureAssistant(ctx context.Context, instructions string) error {
	stored, err := c.store.FindAssistant(ctx, string(c.assistant))
	if err != nil {
		return err
	}
	if stored != "" {
		if _, err := c.api.Beta.Assistants.Get(ctx, stored); err == nil {
			c.assistantID = stored
			return nil
		} else if !isNotFound(err) {
			return fmt.Errorf("retrieve assistant %s: %w", c.assistant, err)
		}
		c.logger.Warn("stored assistant no longer exists, recreating", "assistant", c.assistant)
	}

	created, err := c.api.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        shared.ChatModel(c.model),
		Name:         openai.String(fmt.Sprintf("%s %s", c.assistant, time.Now().UTC().Format(time.RFC3339))),
		Instructions: openai.String(instructions),
	})
	if err != nil {
		return fmt.Errorf("assistant creation for %s failed: %w", c.assistant, err)
	}
	if err := c.store.UpsertAssistant(ctx, string(c.assistant), created.ID); err != nil {
		return err
	}
	c.assistantID = created.ID
	return nil
}

func (c *Client) createThread(ctx context.Context, owner string) (string, error) {
	thread, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("thread creation for %q failed: %w", owner, err)
	}
	if err := c.store.UpsertThread(ctx, owner, thread.ID); err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (c *Client) threadID(ctx context.Context, owner string) (string, error) {
	stored, err := c.store.FindThread(ctx, owner)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}
	return c.createThread(ctx, owner)
}

// GenerateResponse appends the user text to the owner's thread, runs
// the assistant over it, and returns the assistant's reply. A thread
// deleted remotely is recreated once.
func (c *Client) GenerateResponse(ctx context.Context, owner, text string) (string, error) {
	threadID, err := c.threadID(ctx, owner)
	if err != nil {
		return "", err
	}

	messageParams := openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	}
	if _, err := c.api.Beta.Threads.Messages.New(ctx, threadID, messageParams); err != nil {
		if !isNotFound(err) {
			return "", fmt.Errorf("append message to thread %s: %w", threadID, err)
		}
		threadID, err = c.createThread(ctx, owner)
		if err != nil {
			return "", err
		}
		if _, err := c.api.Beta.Threads.Messages.New(ctx, threadID, messageParams); err != nil {
			return "", fmt.Errorf("append message to thread %s: %w", threadID, err)
		}
	}

	run, err := c.api.Beta.Threads.Runs.NewAndPoll(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
	}, 500)
	if err != nil {
		return "", fmt.Errorf("run assistant %s: %w", c.assistant, err)
	}
	if run.Status != openai.RunStatusCompleted {
		return "", fmt.Errorf("assistant run finished with status %s", run.Status)
	}

	page, err := c.api.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		RunID: openai.String(run.ID),
	})
	if err != nil {
		return "", fmt.Errorf("list run messages: %w", err)
	}
	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, content := range msg.Content {
			if content.Type == "text" {
				return content.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("assistant run %s produced no text reply", run.ID)
}

// TextToSpeech synthesizes spoken audio for text and wraps it as a
// named payload.
func (c *Client) TextToSpeech(ctx context.Context, text, filename string) (*im.FileBox, error) {
	res, err := c.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Voice: openai.AudioSpeechNewParamsVoiceAlloy,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesized speech: %w", err)
	}
	return im.FileBoxFromBytes(filename, data), nil
}

// SpeechToText transcribes an audio payload.
func (c *Client) SpeechToText(ctx context.Context, box *im.FileBox) (string, error) {
	if box == nil {
		return "", fmt.Errorf("audio payload is required")
	}
	transcription, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(box.Data), box.Name, "application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return transcription.Text, nil
}

func isNotFound(err error) bool {
	var apierr *openai.Error
	return errors.As(err, &apierr) && apierr.StatusCode == http.StatusNotFound
}

var _ llm.Client = (*Client)(nil)
