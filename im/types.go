package im

import (
	"context"
	"time"
)

// MessageType follows the wechaty puppet unified message schema. The
// numeric values are part of the transport contract and must not be
// reordered.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeAttachment
	MessageTypeAudio
	MessageTypeContact
	MessageTypeChatHistory
	MessageTypeEmoticon
	MessageTypeImage
	MessageTypeText
	MessageTypeLocation
	MessageTypeMiniProgram
	MessageTypeGroupNote
	MessageTypeTransfer
	MessageTypeRedEnvelope
	MessageTypeRecalled
	MessageTypeUrl
	MessageTypeVideo
	MessageTypePost
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeAttachment:
		return "attachment"
	case MessageTypeAudio:
		return "audio"
	case MessageTypeContact:
		return "contact"
	case MessageTypeChatHistory:
		return "chat_history"
	case MessageTypeEmoticon:
		return "emoticon"
	case MessageTypeImage:
		return "image"
	case MessageTypeText:
		return "text"
	case MessageTypeLocation:
		return "location"
	case MessageTypeMiniProgram:
		return "mini_program"
	case MessageTypeGroupNote:
		return "group_note"
	case MessageTypeTransfer:
		return "transfer"
	case MessageTypeRedEnvelope:
		return "red_envelope"
	case MessageTypeRecalled:
		return "recalled"
	case MessageTypeUrl:
		return "url"
	case MessageTypeVideo:
		return "video"
	case MessageTypePost:
		return "post"
	default:
		return "unknown"
	}
}

// Sayable is any payload the transport's send primitive accepts:
// either Text or a *FileBox.
type Sayable interface {
	sayable()
}

type Text string

func (Text) sayable() {}

// FileBox is a named binary payload (image, audio, video, attachment).
type FileBox struct {
	Name string
	Data []byte
}

func (*FileBox) sayable() {}

func FileBoxFromBytes(name string, data []byte) *FileBox {
	return &FileBox{Name: name, Data: data}
}

// Sayer is a resolved conversation handle that can receive a payload.
type Sayer interface {
	Say(ctx context.Context, payload Sayable) error
}

type Contact interface {
	Sayer
	Name() string
}

type Room interface {
	Sayer
	Topic() string
}

// Message is a single inbound transport event. It is read-only to the
// core and never persisted.
type Message interface {
	Type() MessageType
	Text() string
	// Room returns the enclosing group conversation, or nil for a
	// direct message.
	Room() Room
	// Talker is the sender of the message.
	Talker() Contact
	// Listener is the addressee of a direct message, nil in group chats.
	Listener() Contact
	// Self reports whether the message was sent by the logged-in
	// account itself.
	Self() bool
	Date() time.Time
	// ToFileBox extracts the binary payload of a media message.
	ToFileBox(ctx context.Context) (*FileBox, error)
}

// ScanStatus mirrors the transport's QR login challenge states.
type ScanStatus int

const (
	ScanStatusUnknown ScanStatus = iota
	ScanStatusCancel
	ScanStatusWaiting
	ScanStatusScanned
	ScanStatusConfirmed
	ScanStatusTimeout
)

// Handlers carries the event callbacks a Session invokes. Nil fields
// are ignored.
type Handlers struct {
	OnScan    func(qrcode string, status ScanStatus)
	OnLogin   func(user Contact)
	OnLogout  func(user Contact, reason string)
	OnMessage func(ctx context.Context, msg Message)
	OnReady   func(ctx context.Context)
	OnError   func(err error)
}

// Session is the IM transport collaborator: an event source plus an
// action sink bound to one logged-in account.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Subscribe(h Handlers)
	// FindContact looks a contact up by exact display name. A nil
	// Contact with nil error means not found.
	FindContact(ctx context.Context, name string) (Contact, error)
	// FindRoom looks a group conversation up by exact topic. A nil
	// Room with nil error means not found.
	FindRoom(ctx context.Context, topic string) (Room, error)
	CurrentUser() Contact
}
