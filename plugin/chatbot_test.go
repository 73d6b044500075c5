package plugin

import (
	"context"
	"strings"
	"testing"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/im/imtest"
)

// fakeLLM is a scriptable llm.Client.
type fakeLLM struct {
	response      string
	transcription string
	ttsBox        *im.FileBox

	lastOwner string
	lastText  string
}

func (f *fakeLLM) GenerateResponse(_ context.Context, owner, text string) (string, error) {
	f.lastOwner = owner
	f.lastText = text
	return f.response, nil
}

func (f *fakeLLM) TextToSpeech(_ context.Context, _, filename string) (*im.FileBox, error) {
	if f.ttsBox != nil {
		return f.ttsBox, nil
	}
	return im.FileBoxFromBytes(filename, []byte("audio")), nil
}

func (f *fakeLLM) SpeechToText(context.Context, *im.FileBox) (string, error) {
	return f.transcription, nil
}

func newTestChatBot(t *testing.T, client *fakeLLM, audioResponse bool) *ChatBot {
	t.Helper()
	bot, err := NewChatBot(ChatBotOptions{
		TriggerNames:  []string{"convo", "bot"},
		LLM:           client,
		AudioResponse: audioResponse,
	})
	if err != nil {
		t.Fatalf("NewChatBot: %v", err)
	}
	return bot
}

func TestChatBotTextValidator(t *testing.T) {
	bot := newTestChatBot(t, &fakeLLM{}, false)
	validator := bot.Validators()[im.MessageTypeText]

	cases := []struct {
		text string
		want bool
	}{
		{"@convo hello", true},
		{"  @Bot hello", true},
		{"@CONVO", true},
		{"convo hello", false},
		{"hello @convo", false},
		{"@stranger hello", false},
	}
	for _, tc := range cases {
		msg := imtest.TextMessage(imtest.NewContact("alice"), tc.text)
		got, err := validator(context.Background(), msg)
		if err != nil {
			t.Fatalf("validator(%q): %v", tc.text, err)
		}
		if got != tc.want {
			t.Fatalf("validator(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestChatBotHandleTextMessage(t *testing.T) {
	client := &fakeLLM{response: "hi alice"}
	bot := newTestChatBot(t, client, false)

	alice := imtest.NewContact("alice")
	msg := imtest.TextMessage(alice, "@convo how are you")
	if err := bot.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if client.lastOwner != "alice" {
		t.Fatalf("owner = %q, want alice", client.lastOwner)
	}
	if client.lastText != "how are you" {
		t.Fatalf("sanitized text = %q, want trigger removed", client.lastText)
	}
	texts := alice.SaidTexts()
	if len(texts) != 1 {
		t.Fatalf("got %d replies, want 1", len(texts))
	}
	for _, want := range []string{"@alice\n", "how are you", "===============", "hi alice"} {
		if !strings.Contains(texts[0], want) {
			t.Fatalf("reply missing %q:\n%s", want, texts[0])
		}
	}
}

func TestChatBotGroupThreadOwnerIsTopic(t *testing.T) {
	client := &fakeLLM{response: "ok"}
	bot := newTestChatBot(t, client, false)

	family := imtest.NewRoom("family")
	msg := imtest.RoomTextMessage(family, imtest.NewContact("alice"), "@convo hello")
	if err := bot.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if client.lastOwner != "family" {
		t.Fatalf("owner = %q, want room topic", client.lastOwner)
	}
	if len(family.SaidTexts()) != 1 {
		t.Fatal("reply did not go to the room")
	}
}

func TestChatBotQuoteTruncation(t *testing.T) {
	client := &fakeLLM{response: "ok"}
	bot := newTestChatBot(t, client, false)

	long := strings.Repeat("好", 30)
	alice := imtest.NewContact("alice")
	if err := bot.Handle(context.Background(), imtest.TextMessage(alice, "@convo "+long)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	texts := alice.SaidTexts()
	if len(texts) != 1 {
		t.Fatalf("got %d replies, want 1", len(texts))
	}
	wantQuote := strings.Repeat("好", chatBotQuoteLength) + "..."
	if !strings.Contains(texts[0], wantQuote) {
		t.Fatalf("reply missing truncated quote %q:\n%s", wantQuote, texts[0])
	}
	if strings.Contains(texts[0], strings.Repeat("好", chatBotQuoteLength+1)) {
		t.Fatal("quote was not truncated")
	}
}

func TestChatBotAudioMessage(t *testing.T) {
	client := &fakeLLM{response: "spoken reply", transcription: "convo tell me a joke"}
	bot := newTestChatBot(t, client, true)

	alice := imtest.NewContact("alice")
	msg := &imtest.Message{
		MsgType: im.MessageTypeAudio,
		Sender:  alice,
		FileBox: im.FileBoxFromBytes("voice.sil", []byte("pcm")),
	}
	if err := bot.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if client.lastText != "tell me a joke" {
		t.Fatalf("sanitized transcription = %q", client.lastText)
	}

	said := alice.Said()
	if len(said) != 2 {
		t.Fatalf("got %d payloads, want text plus audio", len(said))
	}
	box, ok := said[1].(*im.FileBox)
	if !ok || box.Name != "response.mp3" {
		t.Fatalf("second payload = %#v, want response.mp3 file box", said[1])
	}
}

func TestChatBotDropsUnaddressedAudio(t *testing.T) {
	client := &fakeLLM{response: "ignored", transcription: "talking about something else"}
	bot := newTestChatBot(t, client, false)

	alice := imtest.NewContact("alice")
	msg := &imtest.Message{
		MsgType: im.MessageTypeAudio,
		Sender:  alice,
		FileBox: im.FileBoxFromBytes("voice.sil", []byte("pcm")),
	}
	if err := bot.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(alice.Said()) != 0 {
		t.Fatalf("unaddressed audio produced %d replies, want 0", len(alice.Said()))
	}
	if client.lastText != "" {
		t.Fatal("llm was invoked for an unaddressed transcription")
	}
}

func TestRemoveFirstMatch(t *testing.T) {
	trigger := pingTrigger
	cases := []struct {
		in   string
		want string
	}{
		{"/ping rest", "rest"},
		{"  /ping  ", ""},
		{"no trigger here", "no trigger here"},
	}
	for _, tc := range cases {
		if got := removeFirstMatch(tc.in, trigger); got != tc.want {
			t.Fatalf("removeFirstMatch(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
