// Package plugin holds the plugin abstraction, the ordered first-match
// dispatch registry, and the concrete plugins compiled into the bot.
package plugin

import (
	"context"
	"errors"

	"github.com/linj121/convo/im"
)

// Validator decides whether a plugin should handle a message of the
// type it is registered for. Validators may do real work (e.g. audio
// transcription), hence the context.
type Validator func(ctx context.Context, msg im.Message) (bool, error)

// Plugin is a self-contained message handler bound to one or more
// message-type validators.
type Plugin interface {
	Name() string
	Version() string
	Description() string
	// Validators maps each message type the plugin handles to its
	// predicate. The returned map is treated as immutable.
	Validators() map[im.MessageType]Validator
	Handle(ctx context.Context, msg im.Message) error
}

// ErrUnauthorized marks an admin-only operation attempted by a
// non-admin sender. Expected control flow, logged at info level.
var ErrUnauthorized = errors.New("unauthorized")

// ErrInvalidArgument marks a malformed admin command. Expected control
// flow, logged at info level.
var ErrInvalidArgument = errors.New("invalid command argument")
