package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/llm"
)

const habitTrackerHelp = `A command for tracking habits
Usage: /habit [OPTIONS]
Options:
-e str  set custom event (leetcode, workout, ...)
-t str  set timezone (Asia/Shanghai, ...)
-n str  notes, enclosed by double quotes "
-h      display help message
-v      get current version`

const habitTrackerDefaultTimezone = "America/Toronto"

var (
	habitTrigger = regexp.MustCompile(`(?i)^ */habit`)
	// -e/-t/-n take a value (quoted for notes), -h/-v stand alone.
	habitOptionPattern = regexp.MustCompile(`(?:-(?P<option1>[etn])\s+(?:"(?P<note>[^"]+)"|(?P<param>\S+)))|(?:-(?P<option0>[hv]))`)

	smartQuotePattern = regexp.MustCompile(`“|”`)
	lineBreakPattern  = regexp.MustCompile(`<br/>`)
	anchorTagPattern  = regexp.MustCompile(`<a[^>]*>([^<]+)</a>`)
)

type habitCommand struct {
	Event    string
	Timezone string
	Note     string
	Help     bool
	Version  bool
}

// HabitTrackerOptions configures a HabitTracker plugin instance.
type HabitTrackerOptions struct {
	// LLM should be backed by the habit-tracker assistant.
	LLM    llm.Client
	Logger *slog.Logger
}

// HabitTracker records habit check-ins sent as /habit commands and
// replies with an encouraging assistant summary.
type HabitTracker struct {
	llmClient llm.Client
	logger    *slog.Logger
}

func NewHabitTracker(opts HabitTrackerOptions) (*HabitTracker, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HabitTracker{llmClient: opts.LLM, logger: logger}, nil
}

func (h *HabitTracker) Name() string    { return "Habit Tracker" }
func (h *HabitTracker) Version() string { return "v0.0.1" }
func (h *HabitTracker) Description() string {
	return "A habit tracking bot that always cheers you up! Send /habit -h for more info."
}

func (h *HabitTracker) Validators() map[im.MessageType]Validator {
	return map[im.MessageType]Validator{
		im.MessageTypeText: func(_ context.Context, msg im.Message) (bool, error) {
			return habitTrigger.MatchString(msg.Text()), nil
		},
	}
}

func (h *HabitTracker) Handle(ctx context.Context, msg im.Message) error {
	if msg.Type() != im.MessageTypeText {
		return nil
	}

	command := preprocessWeChatText(msg.Text())
	options := parseHabitCommand(command)

	if options.Help {
		return im.Respond(ctx, msg, im.Text(habitTrackerHelp))
	}
	if options.Version {
		return im.Respond(ctx, msg, im.Text(h.Version()))
	}

	timezone := options.Timezone
	if timezone == "" {
		timezone = habitTrackerDefaultTimezone
	}
	localTime := msg.Date()
	if loc, err := time.LoadLocation(timezone); err == nil {
		localTime = localTime.In(loc)
	}

	summaryPayload := map[string]string{
		"time":  localTime.Format("1/2/2006, 3:04:05 PM"),
		"name":  msg.Talker().Name(),
		"event": options.Event,
		"note":  options.Note,
	}
	payloadJSON, err := json.Marshal(summaryPayload)
	if err != nil {
		return fmt.Errorf("marshal habit payload: %w", err)
	}

	summary, err := h.llmClient.GenerateResponse(ctx, threadOwner(msg), string(payloadJSON))
	if err != nil {
		return fmt.Errorf("summarize habit: %w", err)
	}
	if err := im.Respond(ctx, msg, im.Text(summary)); err != nil {
		return err
	}

	h.postHabitPayload(options, msg)
	return nil
}

// postHabitPayload will forward the check-in to an external habit
// service. Not wired to a backend yet.
func (h *HabitTracker) postHabitPayload(options habitCommand, msg im.Message) {
	h.logger.Debug("habit check-in recorded",
		"talker", msg.Talker().Name(),
		"event", options.Event,
		"note", options.Note,
	)
}

// preprocessWeChatText strips the markup WeChat adds to typed text:
// smart quotes, <br/> line breaks, and anchor tags around pasted links.
func preprocessWeChatText(text string) string {
	processed := smartQuotePattern.ReplaceAllString(text, `"`)
	processed = lineBreakPattern.ReplaceAllString(processed, "\n")
	return anchorTagPattern.ReplaceAllString(processed, "$1")
}

func parseHabitCommand(command string) habitCommand {
	var options habitCommand
	for _, match := range habitOptionPattern.FindAllStringSubmatch(command, -1) {
		option1, note, param, option0 := match[1], match[2], match[3], match[4]

		switch option0 {
		case "h":
			options.Help = true
		case "v":
			options.Version = true
		}
		switch option1 {
		case "e":
			options.Event = param
		case "t":
			options.Timezone = param
		case "n":
			if note != "" {
				options.Note = note
			} else {
				options.Note = param
			}
		}
	}
	return options
}
