package scheduler

import (
	"context"
	"fmt"

	"github.com/linj121/convo/im"
)

// Resolver maps an abstract target spec to a live conversation handle.
// Resolution happens at the moment of use and is never cached, since
// contacts and rooms can appear and disappear between ticks.
type Resolver struct {
	session im.Session
}

func NewResolver(session im.Session) (*Resolver, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	return &Resolver{session: session}, nil
}

// Resolve looks the target up by exact name. Not-found is an error,
// not a nil handle.
func (r *Resolver) Resolve(ctx context.Context, target Target) (im.Sayer, error) {
	switch target.Type {
	case TargetContact:
		contact, err := r.session.FindContact(ctx, target.Name)
		if err != nil {
			return nil, fmt.Errorf("find contact %q: %w", target.Name, err)
		}
		if contact == nil {
			return nil, fmt.Errorf("target [%s] is not found", target.Name)
		}
		return contact, nil
	case TargetRoom:
		room, err := r.session.FindRoom(ctx, target.Name)
		if err != nil {
			return nil, fmt.Errorf("find room %q: %w", target.Name, err)
		}
		if room == nil {
			return nil, fmt.Errorf("target [%s] is not found", target.Name)
		}
		return room, nil
	default:
		return nil, fmt.Errorf("invalid target type %q", target.Type)
	}
}
