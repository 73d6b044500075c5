package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/linj121/convo/im"
)

var pingTrigger = regexp.MustCompile(`(?i)^ */ping`)

// TestPluginOptions configures a TestPlugin instance.
type TestPluginOptions struct {
	Logger *slog.Logger
}

// TestPlugin exercises the dispatch and failure paths end to end:
// /ping answers pong, attachment messages fail on purpose.
type TestPlugin struct {
	logger *slog.Logger
}

func NewTestPlugin(opts TestPluginOptions) *TestPlugin {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TestPlugin{logger: logger}
}

func (t *TestPlugin) Name() string        { return "Test Plugin" }
func (t *TestPlugin) Version() string     { return "v0.0.1" }
func (t *TestPlugin) Description() string { return "A test plugin. Send /ping to test it." }

func (t *TestPlugin) Validators() map[im.MessageType]Validator {
	return map[im.MessageType]Validator{
		im.MessageTypeText: func(_ context.Context, msg im.Message) (bool, error) {
			return pingTrigger.MatchString(msg.Text()), nil
		},
		im.MessageTypeImage: func(context.Context, im.Message) (bool, error) {
			return false, nil
		},
		im.MessageTypeAttachment: func(context.Context, im.Message) (bool, error) {
			return false, nil
		},
	}
}

func (t *TestPlugin) Handle(ctx context.Context, msg im.Message) error {
	t.logger.Info("running test plugin")

	switch msg.Type() {
	case im.MessageTypeText:
		return im.Respond(ctx, msg, im.Text("pong!"))
	case im.MessageTypeImage:
		return im.Respond(ctx, msg, im.Text("Got an image"))
	case im.MessageTypeAttachment:
		return fmt.Errorf("testing error handling for test plugin")
	default:
		return nil
	}
}
