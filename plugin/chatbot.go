package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/llm"
)

const chatBotQuoteLength = 20

// ChatBotOptions configures a ChatBot plugin instance.
type ChatBotOptions struct {
	// TriggerNames are the names the bot answers to. A text message
	// must start with "@<name>", an audio transcription with "<name>".
	TriggerNames []string
	LLM          llm.Client
	// AudioResponse enables a spoken reply sent after the text reply.
	AudioResponse bool
	Logger        *slog.Logger
}

// ChatBot relays whitelisted conversations to the language-model
// collaborator. Handles both text and audio messages.
type ChatBot struct {
	llmClient     llm.Client
	audioResponse bool
	logger        *slog.Logger

	description  string
	textTrigger  *regexp.Regexp
	audioTrigger *regexp.Regexp
}

func NewChatBot(opts ChatBotOptions) (*ChatBot, error) {
	if len(opts.TriggerNames) == 0 {
		return nil, fmt.Errorf("at least one trigger name is required")
	}
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	alternatives := strings.Join(opts.TriggerNames, "|")
	textTrigger, err := regexp.Compile(`(?i)^ *@(` + alternatives + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile text trigger: %w", err)
	}
	audioTrigger, err := regexp.Compile(`(?i)^ *(` + alternatives + `)`)
	if err != nil {
		return nil, fmt.Errorf("compile audio trigger: %w", err)
	}
	return &ChatBot{
		llmClient:     opts.LLM,
		audioResponse: opts.AudioResponse,
		logger:        logger,
		description: "An intelligent conversational chat bot. " +
			fmt.Sprintf("Send @ + one of the following: (%s) + your message to talk to the bot! ", strings.Join(opts.TriggerNames, ",")) +
			"Support both text and audio messages.",
		textTrigger:  textTrigger,
		audioTrigger: audioTrigger,
	}, nil
}

func (c *ChatBot) Name() string        { return "Chat Bot" }
func (c *ChatBot) Version() string     { return "v0.1.0" }
func (c *ChatBot) Description() string { return c.description }

func (c *ChatBot) Validators() map[im.MessageType]Validator {
	return map[im.MessageType]Validator{
		im.MessageTypeText: func(_ context.Context, msg im.Message) (bool, error) {
			return c.textTrigger.MatchString(msg.Text()), nil
		},
		// Catch all audio messages here and validate the transcription
		// inside the handler, so the audio is transcribed only once.
		im.MessageTypeAudio: func(context.Context, im.Message) (bool, error) {
			return true, nil
		},
	}
}

func (c *ChatBot) Handle(ctx context.Context, msg im.Message) error {
	var messageText string
	var trigger *regexp.Regexp

	switch msg.Type() {
	case im.MessageTypeText:
		messageText = msg.Text()
		trigger = c.textTrigger
	case im.MessageTypeAudio:
		box, err := msg.ToFileBox(ctx)
		if err != nil {
			return fmt.Errorf("extract audio payload: %w", err)
		}
		transcription, err := c.llmClient.SpeechToText(ctx, box)
		if err != nil {
			return fmt.Errorf("transcribe audio: %w", err)
		}
		// The audio validator is a catch-all; transcriptions that do
		// not address the bot are dropped here without a reply.
		if !c.audioTrigger.MatchString(transcription) {
			return nil
		}
		messageText = transcription
		trigger = c.audioTrigger
	default:
		return nil
	}

	sanitized := removeFirstMatch(messageText, trigger)
	owner := threadOwner(msg)

	response, err := c.llmClient.GenerateResponse(ctx, owner, sanitized)
	if err != nil {
		return fmt.Errorf("generate response: %w", err)
	}

	textReply := textResponseTemplate(sanitized, response, msg.Talker().Name())
	if err := im.Respond(ctx, msg, im.Text(textReply)); err != nil {
		return fmt.Errorf("send text reply: %w", err)
	}

	if c.audioResponse {
		// Always send the audio reply after the text reply.
		audio, err := c.llmClient.TextToSpeech(ctx, response, "response.mp3")
		if err != nil {
			return fmt.Errorf("synthesize audio reply: %w", err)
		}
		if err := im.Respond(ctx, msg, audio); err != nil {
			return fmt.Errorf("send audio reply: %w", err)
		}
	}
	return nil
}

// threadOwner derives the conversation-scoped key that correlates
// assistant context: group topic for rooms, effective contact name for
// direct messages.
func threadOwner(msg im.Message) string {
	if room := msg.Room(); room != nil {
		return room.Topic()
	}
	name, err := im.TargetContactName(msg)
	if err != nil {
		return msg.Talker().Name()
	}
	return name
}

// removeFirstMatch deletes the first trigger occurrence so the bot's
// own replies can never re-trigger it.
func removeFirstMatch(text string, trigger *regexp.Regexp) string {
	loc := trigger.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
}

func textResponseTemplate(userMessage, response, talkerName string) string {
	quote := userMessage
	if runes := []rune(quote); len(runes) >= chatBotQuoteLength {
		quote = string(runes[:chatBotQuoteLength]) + "..."
	}
	mention := ""
	if talkerName != "" {
		mention = "@" + talkerName + "\n"
	}
	return mention + quote + "\n===============\n" + response
}
