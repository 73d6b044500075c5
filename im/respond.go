package im

import (
	"context"
	"fmt"
)

// Respond sends a payload back to the conversation a message came from:
// the room for group messages, otherwise the direct peer. When the
// message was sent by the logged-in account itself, the reply goes to
// the listener (the original addressee), not back to the sender.
func Respond(ctx context.Context, msg Message, payload Sayable) error {
	if room := msg.Room(); room != nil {
		return room.Say(ctx, payload)
	}
	if msg.Self() {
		listener := msg.Listener()
		if listener == nil {
			return fmt.Errorf("message target cannot be resolved")
		}
		return listener.Say(ctx, payload)
	}
	return msg.Talker().Say(ctx, payload)
}

// TargetContactName resolves the effective conversation partner of a
// direct message: the listener when the message was sent by the
// logged-in account, the talker otherwise.
func TargetContactName(msg Message) (string, error) {
	if msg.Self() {
		listener := msg.Listener()
		if listener == nil {
			return "", fmt.Errorf("self-sent message has no listener")
		}
		return listener.Name(), nil
	}
	return msg.Talker().Name(), nil
}

// IsFromGroupChat reports whether a message arrived through a group
// conversation.
func IsFromGroupChat(msg Message) bool {
	return msg.Room() != nil
}
