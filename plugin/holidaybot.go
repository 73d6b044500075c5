package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/linj121/convo/im"
)

var holidayTrigger = regexp.MustCompile(`^.*中秋.*快乐`)

const holidayImageFile = "images/happy_mid_autumn_festival.jpg"

// HolidayBotOptions configures a HolidayBot plugin instance.
type HolidayBotOptions struct {
	// AssetsDir is the directory holding bundled media.
	AssetsDir string
	Logger    *slog.Logger
}

// HolidayBot replies to festival greetings with a celebration picture.
type HolidayBot struct {
	assetsDir string
	logger    *slog.Logger
}

func NewHolidayBot(opts HolidayBotOptions) (*HolidayBot, error) {
	if opts.AssetsDir == "" {
		return nil, fmt.Errorf("assets dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HolidayBot{assetsDir: opts.AssetsDir, logger: logger}, nil
}

func (h *HolidayBot) Name() string        { return "Holiday Bot" }
func (h *HolidayBot) Version() string     { return "v0.0.1" }
func (h *HolidayBot) Description() string { return "Let's celebrate!" }

func (h *HolidayBot) Validators() map[im.MessageType]Validator {
	return map[im.MessageType]Validator{
		im.MessageTypeText: func(_ context.Context, msg im.Message) (bool, error) {
			return holidayTrigger.MatchString(msg.Text()), nil
		},
	}
}

func (h *HolidayBot) Handle(ctx context.Context, msg im.Message) error {
	if msg.Type() != im.MessageTypeText {
		return nil
	}

	path := filepath.Join(h.assetsDir, holidayImageFile)
	h.logger.Debug("sending holiday picture", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to send pic: %w", err)
	}
	return im.Respond(ctx, msg, im.FileBoxFromBytes(filepath.Base(path), data))
}
