// Copyright 2026 The Dishwasher Bot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dishwasher-bot/dishwasher-bot/lib/allowlist"
	"github.com/dishwasher-bot/dishwasher-bot/lib/appliance"
	"github.com/dishwasher-bot/dishwasher-bot/lib/broker"
	"github.com/dishwasher-bot/dishwasher-bot/lib/clock"
	"github.com/dishwasher-bot/dishwasher-bot/lib/ref"
	"github.com/dishwasher-bot/dishwasher-bot/messaging"
)

var (
	botUser   = ref.MustParseUserID("@dishwasher:local")
	alice     = ref.MustParseUserID("@alice:local")
	mallory   = ref.MustParseUserID("@mallory:local")
	directDM  = ref.MustParseRoomID("!dm:local")
	authRoom  = ref.MustParseRoomID("!auth:local")
	testEvent = mustEventID("$command")
)

func mustEventID(raw string) ref.EventID {
	eventID, err := ref.ParseEventID(raw)
	if err != nil {
		panic(err)
	}
	return eventID
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentReply struct {
	roomID ref.RoomID
	body   string
}

// fakeSender records replies.
type fakeSender struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeSender) SendMessage(_ context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{roomID: roomID, body: content.Body})
	if f.err != nil {
		return ref.EventID{}, f.err
	}
	return mustEventID("$reply"), nil
}

func (f *fakeSender) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := make([]string, len(f.replies))
	for i, reply := range f.replies {
		bodies[i] = reply.body
	}
	return bodies
}

// fakeMembers is an allowlist.MemberSource.
type fakeMembers struct {
	members []ref.UserID
	err     error
	calls   int
}

func (f *fakeMembers) JoinedMembers(_ context.Context, roomID ref.RoomID) ([]ref.UserID, error) {
	f.calls++
	if roomID != authRoom {
		return nil, errors.New("wrong room")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.members, nil
}

// doneToken is an already completed mqtt.Token.
type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func (doneToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}

type mqttMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeMQTT is a broker.Client recording publishes.
type fakeMQTT struct {
	mu       sync.Mutex
	messages []mqttMessage
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, mqttMessage{topic: topic, qos: qos, retained: retained, payload: string(payload.([]byte))})
	return doneToken{}
}

func (f *fakeMQTT) Disconnect(uint) {}

func (f *fakeMQTT) published() []mqttMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mqttMessage(nil), f.messages...)
}

type harness struct {
	dispatcher *dispatcher
	sender     *fakeSender
	members    *fakeMembers
	mqtt       *fakeMQTT
	publisher  *broker.Publisher
}

func newHarness(members ...ref.UserID) *harness {
	h := &harness{
		sender:  &fakeSender{},
		members: &fakeMembers{members: members},
		mqtt:    &fakeMQTT{},
	}
	h.publisher = broker.NewPublisher(h.mqtt, appliance.NormalizePrefix("home/dishwashers"), discardLogger())
	h.dispatcher = &dispatcher{
		botUserID: botUser,
		sender:    h.sender,
		allowlist: allowlist.NewManager(h.members, authRoom, clock.Real(), discardLogger()),
		publisher: h.publisher,
		logger:    discardLogger(),
	}
	return h
}

func (h *harness) send(t *testing.T, sender ref.UserID, memberCount int, body string) {
	t.Helper()
	h.dispatcher.handle(context.Background(), chatEvent{
		RoomID:      directDM,
		MemberCount: memberCount,
		Sender:      sender,
		EventID:     testEvent,
		Body:        body,
	})
	if !h.publisher.Flush(5 * time.Second) {
		t.Fatal("publishes did not complete")
	}
}

func (h *harness) requireReplies(t *testing.T, want ...string) {
	t.Helper()
	got := h.sender.bodies()
	if len(got) != len(want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reply[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func (h *harness) requireNoPublish(t *testing.T) {
	t.Helper()
	if published := h.mqtt.published(); len(published) != 0 {
		t.Errorf("unexpected publishes: %+v", published)
	}
}

func TestHelpText(t *testing.T) {
	want := "This bot only works in unencrypted direct message rooms.\n" +
		"\n" +
		"This bot supports the following commands:\n" +
		"\n" +
		"help                 Prints this help\n" +
		"start <dishwasher>   Start the given dishwasher\n" +
		"reset <dishwasher>   Reset/Empty the given dishwasher\n" +
		"\n" +
		"Valid dishwashers are:\n" +
		"\n" +
		"asterix, obelix, idefix, miraculix,\n" +
		"tick, trick, track, donald\n"
	if helpText != want {
		t.Errorf("helpText =\n%s\nwant\n%s", helpText, want)
	}
}

func TestHelp(t *testing.T) {
	for _, body := range []string{"help", "HELP", "Help me please", "  help  "} {
		t.Run(body, func(t *testing.T) {
			h := newHarness(alice)
			h.send(t, mallory, 2, body)

			h.requireReplies(t, helpText)
			h.requireNoPublish(t)
			if h.members.calls != 0 {
				t.Errorf("help consulted the allowlist %d times", h.members.calls)
			}
		})
	}
}

func TestContextFilter(t *testing.T) {
	t.Run("more than two participants", func(t *testing.T) {
		h := newHarness(alice)
		h.send(t, alice, 3, "start asterix")
		h.send(t, alice, 3, "help")

		h.requireReplies(t)
		h.requireNoPublish(t)
	})

	t.Run("own messages", func(t *testing.T) {
		h := newHarness(alice, botUser)
		h.send(t, botUser, 2, "start asterix")
		h.send(t, botUser, 2, "help")

		h.requireReplies(t)
		h.requireNoPublish(t)
	})

	t.Run("one participant", func(t *testing.T) {
		h := newHarness(alice)
		h.send(t, alice, 1, "help")
		h.requireReplies(t, helpText)
	})
}

func TestIgnoredMessages(t *testing.T) {
	for _, body := range []string{"", "   ", "hello", "stop asterix", "starting asterix", "!start asterix"} {
		t.Run(body, func(t *testing.T) {
			h := newHarness(alice)
			h.send(t, alice, 2, body)

			h.requireReplies(t)
			h.requireNoPublish(t)
		})
	}
}

func TestMissingDevice(t *testing.T) {
	for _, body := range []string{"start", "reset", "RESET   "} {
		t.Run(body, func(t *testing.T) {
			h := newHarness(alice)
			h.send(t, alice, 2, body)

			h.requireReplies(t, "Please supply a dishwasher")
			h.requireNoPublish(t)
			if h.members.calls != 0 {
				t.Error("argument validation must happen before authorization")
			}
		})
	}
}

func TestUnknownDevice(t *testing.T) {
	h := newHarness(alice)
	h.send(t, alice, 2, "start Dogmatix")

	h.requireReplies(t, "Unknown dishwasher: dogmatix.")
	h.requireNoPublish(t)
	if h.members.calls != 0 {
		t.Error("unknown device must be rejected before authorization")
	}
}

func TestUnauthorizedSender(t *testing.T) {
	h := newHarness(alice)
	h.send(t, mallory, 2, "start asterix")

	h.requireReplies(t, "You are not authorized to perform this function.")
	h.requireNoPublish(t)
	if h.members.calls != 1 {
		t.Errorf("allowlist refreshed %d times, want 1", h.members.calls)
	}
}

func TestStartEndToEnd(t *testing.T) {
	h := newHarness(alice, botUser)
	h.send(t, alice, 2, "start asterix")

	published := h.mqtt.published()
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}
	message := published[0]
	if message.topic != "home/dishwashers/asterix/start" {
		t.Errorf("topic = %q", message.topic)
	}
	wantPayload := `{"topic":"home/dishwashers/asterix/start","dishwasher":"asterix","action":"start"}`
	if message.payload != wantPayload {
		t.Errorf("payload = %s, want %s", message.payload, wantPayload)
	}
	if message.qos != 1 || message.retained {
		t.Errorf("qos = %d retained = %v, want 1 false", message.qos, message.retained)
	}
	h.requireReplies(t, "Started dishwasher: Asterix.")
	if h.sender.replies[0].roomID != directDM {
		t.Errorf("reply sent to %s, want %s", h.sender.replies[0].roomID, directDM)
	}
}

func TestResetCaseInsensitive(t *testing.T) {
	h := newHarness(alice)
	h.send(t, alice, 2, "Reset OBELIX extra words")

	published := h.mqtt.published()
	if len(published) != 1 || published[0].topic != "home/dishwashers/obelix/reset" {
		t.Fatalf("published = %+v", published)
	}
	h.requireReplies(t, "Reset dishwasher: Obelix.")
}

func TestStaleAllowlistOnFetchFailure(t *testing.T) {
	h := newHarness(alice)
	h.send(t, alice, 2, "start tick")

	h.members.err = errors.New("homeserver unavailable")
	h.send(t, alice, 2, "reset tick")

	published := h.mqtt.published()
	if len(published) != 2 {
		t.Fatalf("published %d messages, want 2", len(published))
	}
	if published[1].topic != "home/dishwashers/tick/reset" {
		t.Errorf("topic = %q", published[1].topic)
	}
	h.requireReplies(t, "Started dishwasher: Tick.", "Reset dishwasher: Tick.")
}

func TestDenyWithoutAnySuccessfulFetch(t *testing.T) {
	h := newHarness(alice)
	h.members.err = errors.New("homeserver unavailable")
	h.send(t, alice, 2, "start donald")

	h.requireReplies(t, "You are not authorized to perform this function.")
	h.requireNoPublish(t)
}

func TestReplyFailureDoesNotStopPublish(t *testing.T) {
	h := newHarness(alice)
	h.sender.err = errors.New("rate limited")
	h.send(t, alice, 2, "start idefix")

	if len(h.mqtt.published()) != 1 {
		t.Error("publish should happen even when the reply fails")
	}
}

func TestRunDrainsUntilClosed(t *testing.T) {
	h := newHarness(alice)
	events := make(chan chatEvent, 3)
	events <- chatEvent{RoomID: directDM, MemberCount: 2, Sender: alice, Body: "start miraculix"}
	events <- chatEvent{RoomID: directDM, MemberCount: 2, Sender: alice, Body: "help"}
	events <- chatEvent{RoomID: directDM, MemberCount: 2, Sender: alice, Body: "reset trick"}
	close(events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.dispatcher.run(context.Background(), events)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the channel closed")
	}
	h.publisher.Flush(5 * time.Second)

	h.requireReplies(t, "Started dishwasher: Miraculix.", helpText, "Reset dishwasher: Trick.")
	if len(h.mqtt.published()) != 2 {
		t.Errorf("published %d messages, want 2", len(h.mqtt.published()))
	}
}

func TestLogAuthorizationRoom(t *testing.T) {
	t.Run("logs member count", func(t *testing.T) {
		var output bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&output, nil))
		members := &fakeMembers{members: []ref.UserID{alice, mallory}}
		manager := allowlist.NewManager(members, authRoom, clock.Real(), discardLogger())

		logAuthorizationRoom(context.Background(), manager, logger)

		line := output.String()
		for _, want := range []string{`"msg":"authorization room ready"`, `"room_id":"!auth:local"`, `"members":2`} {
			if !strings.Contains(line, want) {
				t.Errorf("log output %q missing %s", line, want)
			}
		}
		if members.calls != 1 {
			t.Errorf("JoinedMembers called %d times, want 1", members.calls)
		}
		if !manager.Authorize(context.Background(), alice) {
			t.Error("alice should be authorized after the startup load")
		}
	})

	t.Run("failure is a warning", func(t *testing.T) {
		var output bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&output, nil))
		members := &fakeMembers{err: errors.New("homeserver unavailable")}
		manager := allowlist.NewManager(members, authRoom, clock.Real(), discardLogger())

		logAuthorizationRoom(context.Background(), manager, logger)

		line := output.String()
		for _, want := range []string{`"level":"WARN"`, `"room_id":"!auth:local"`, "homeserver unavailable"} {
			if !strings.Contains(line, want) {
				t.Errorf("log output %q missing %s", line, want)
			}
		}
		if got := len(manager.Members()); got != 0 {
			t.Errorf("Members() has %d entries after a failed load, want 0", got)
		}
	})
}
