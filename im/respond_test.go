package im_test

import (
	"context"
	"testing"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/im/imtest"
)

func TestRespondRoutesToRoom(t *testing.T) {
	room := imtest.NewRoom("family")
	alice := imtest.NewContact("alice")
	msg := imtest.RoomTextMessage(room, alice, "hi")

	if err := im.Respond(context.Background(), msg, im.Text("hello")); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got := room.SaidTexts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("room received %q", got)
	}
	if len(alice.SaidTexts()) != 0 {
		t.Fatal("talker received a direct reply for a group message")
	}
}

func TestRespondRoutesToTalker(t *testing.T) {
	alice := imtest.NewContact("alice")
	msg := imtest.TextMessage(alice, "hi")

	if err := im.Respond(context.Background(), msg, im.Text("hello")); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got := alice.SaidTexts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("talker received %q", got)
	}
}

func TestRespondSelfMessageGoesToListener(t *testing.T) {
	me := imtest.NewContact("me")
	bob := imtest.NewContact("bob")
	msg := &imtest.Message{
		MsgType:  im.MessageTypeText,
		MsgText:  "note to bob",
		Sender:   me,
		Receiver: bob,
		FromSelf: true,
	}

	if err := im.Respond(context.Background(), msg, im.Text("hello")); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got := bob.SaidTexts(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("listener received %q", got)
	}
	if len(me.SaidTexts()) != 0 {
		t.Fatal("self-sent reply echoed back to the sender")
	}
}

func TestRespondSelfMessageWithoutListenerFails(t *testing.T) {
	me := imtest.NewContact("me")
	msg := &imtest.Message{MsgType: im.MessageTypeText, Sender: me, FromSelf: true}
	if err := im.Respond(context.Background(), msg, im.Text("hello")); err == nil {
		t.Fatal("expected error for self message without listener")
	}
}

func TestTargetContactName(t *testing.T) {
	alice := imtest.NewContact("alice")
	bob := imtest.NewContact("bob")

	name, err := im.TargetContactName(imtest.TextMessage(alice, "hi"))
	if err != nil || name != "alice" {
		t.Fatalf("TargetContactName = %q, %v", name, err)
	}

	self := &imtest.Message{MsgType: im.MessageTypeText, Sender: alice, Receiver: bob, FromSelf: true}
	name, err = im.TargetContactName(self)
	if err != nil || name != "bob" {
		t.Fatalf("TargetContactName(self) = %q, %v", name, err)
	}
}

func TestIsFromGroupChat(t *testing.T) {
	alice := imtest.NewContact("alice")
	if im.IsFromGroupChat(imtest.TextMessage(alice, "hi")) {
		t.Fatal("direct message reported as group chat")
	}
	room := imtest.NewRoom("family")
	if !im.IsFromGroupChat(imtest.RoomTextMessage(room, alice, "hi")) {
		t.Fatal("group message not reported as group chat")
	}
}
