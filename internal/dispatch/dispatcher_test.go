package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/storage"
)

// failingStore rejects every append, for exercising the failure path.
type failingStore struct {
	*storage.MemoryStore
}

func (f *failingStore) Append(context.Context, *domain.Message) error {
	return errors.New("disk on fire")
}

type fixture struct {
	d     *Dispatcher
	store *storage.MemoryStore
	h     *hub.Hub

	alice *hub.Client // conn a1, in alice's personal room
	bob   *hub.Client // conn b1, in bob's personal room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	h := hub.New()

	f := &fixture{
		d:     New(store, h, 1024),
		store: store,
		h:     h,
		alice: hub.NewClient("a1", "alice", 16),
		bob:   hub.NewClient("b1", "bob", 16),
	}
	h.Register(f.alice)
	h.Register(f.bob)
	h.Join("a1", domain.PersonalRoom("alice"))
	h.Join("b1", domain.PersonalRoom("bob"))
	return f
}

func recv(t *testing.T, c *hub.Client) hub.Envelope {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		var env hub.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	default:
		t.Fatal("expected a queued frame")
		return hub.Envelope{}
	}
}

func assertSilent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case frame := <-c.Outbound():
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func decodePayload[T any](t *testing.T, env hub.Envelope) T {
	t.Helper()
	raw, err := json.Marshal(env.Payload)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestDispatcher_SubmitPersistsThenFansOut(t *testing.T) {
	f := newFixture(t)

	f.d.Submit(context.Background(), SubmitRequest{
		SenderConn: "a1",
		SenderID:   "alice",
		Target:     domain.PersonalRoom("bob"),
		Content:    "hello",
		TempID:     "tmp-1",
	})

	// Bob gets the message, Alice gets the echo plus her ack.
	bobEnv := recv(t, f.bob)
	assert.Equal(t, domain.EventNewMessage, bobEnv.Type)
	msg := decodePayload[domain.Message](t, bobEnv)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, domain.MessageTypeText, msg.MessageType)
	assert.NotEmpty(t, msg.ID)

	echo := recv(t, f.alice)
	assert.Equal(t, domain.EventNewMessage, echo.Type)
	ack := recv(t, f.alice)
	assert.Equal(t, domain.EventMessageSent, ack.Type)
	sent := decodePayload[sentAck](t, ack)
	assert.Equal(t, "tmp-1", sent.TempID)
	assert.Equal(t, msg.ID, sent.MessageID)

	// And it is durable.
	stored, err := f.store.Get(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)
}

func TestDispatcher_PersistFailureReachesSenderOnly(t *testing.T) {
	f := newFixture(t)
	f.d.store = &failingStore{f.store}

	f.d.Submit(context.Background(), SubmitRequest{
		SenderConn: "a1",
		SenderID:   "alice",
		Target:     domain.PersonalRoom("bob"),
		Content:    "doomed",
		TempID:     "tmp-2",
	})

	env := recv(t, f.alice)
	assert.Equal(t, domain.EventMessageError, env.Type)
	ack := decodePayload[ErrorAck](t, env)
	assert.Equal(t, "tmp-2", ack.TempID)
	assert.Equal(t, "persistence_error", ack.Code)

	assertSilent(t, f.alice)
	assertSilent(t, f.bob)
}

func TestDispatcher_SubmitValidation(t *testing.T) {
	cases := []struct {
		name string
		req  SubmitRequest
	}{
		{"empty content", SubmitRequest{SenderConn: "a1", SenderID: "alice", Target: domain.PersonalRoom("bob"), Content: "   "}},
		{"oversized content", SubmitRequest{SenderConn: "a1", SenderID: "alice", Target: domain.PersonalRoom("bob"), Content: string(make([]byte, 2048))}},
		{"missing target", SubmitRequest{SenderConn: "a1", SenderID: "alice", Content: "hi"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.d.Submit(context.Background(), tc.req)

			env := recv(t, f.alice)
			assert.Equal(t, domain.EventMessageError, env.Type)
			ack := decodePayload[ErrorAck](t, env)
			assert.Equal(t, "validation_error", ack.Code)
			assertSilent(t, f.bob)
		})
	}
}

func TestDispatcher_AttachmentMayHaveEmptyContent(t *testing.T) {
	f := newFixture(t)

	f.d.Submit(context.Background(), SubmitRequest{
		SenderConn:  "a1",
		SenderID:    "alice",
		Target:      domain.PersonalRoom("bob"),
		MessageType: domain.MessageTypeImage,
	})

	env := recv(t, f.bob)
	assert.Equal(t, domain.EventNewMessage, env.Type)
}

func TestDispatcher_ReplyThreadsUnderParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := &domain.Message{ID: "p1", SenderID: "bob", Target: domain.PersonalRoom("alice")}
	require.NoError(t, f.store.Append(ctx, parent))

	f.d.Submit(ctx, SubmitRequest{
		SenderConn: "a1",
		SenderID:   "alice",
		Target:     domain.PersonalRoom("bob"),
		Content:    "re: hi",
		ReplyTo:    "p1",
	})

	env := recv(t, f.bob)
	msg := decodePayload[domain.Message](t, env)
	assert.Equal(t, "p1", msg.ReplyTo)
	assert.Equal(t, "p1", msg.ThreadID, "first reply anchors the thread at the parent")
}

func TestDispatcher_EditSenderOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob"), Content: "v1"}
	require.NoError(t, f.store.Append(ctx, msg))

	err := f.d.Edit(ctx, "bob", "m1", "hijacked")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	assertSilent(t, f.bob)

	require.NoError(t, f.d.Edit(ctx, "alice", "m1", "v2"))

	env := recv(t, f.bob)
	assert.Equal(t, domain.EventMessageEdited, env.Type)
	edited := decodePayload[domain.Message](t, env)
	assert.Equal(t, "v2", edited.Content)
	assert.True(t, edited.IsEdited)
	require.Len(t, edited.EditHistory, 1)
	assert.Equal(t, "v1", edited.EditHistory[0].Content)
}

func TestDispatcher_EditValidation(t *testing.T) {
	f := newFixture(t)

	err := f.d.Edit(context.Background(), "alice", "m1", "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.d.Edit(context.Background(), "alice", "missing", "new")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDispatcher_DeleteTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob"), Content: "oops"}
	require.NoError(t, f.store.Append(ctx, msg))

	assert.ErrorIs(t, f.d.Delete(ctx, "bob", "m1"), domain.ErrAuthorization)
	require.NoError(t, f.d.Delete(ctx, "alice", "m1"))

	env := recv(t, f.bob)
	assert.Equal(t, domain.EventMessageDeleted, env.Type)
	ev := decodePayload[deletedEvent](t, env)
	assert.Equal(t, "m1", ev.MessageID)
	assert.Equal(t, "alice", ev.DeletedBy)

	// The record survives as a tombstone.
	stored, err := f.store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted)

	// Editing a deleted message is refused.
	assert.ErrorIs(t, f.d.Edit(ctx, "alice", "m1", "resurrect"), domain.ErrNotFound)
}

func TestDispatcher_DeleteForMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := domain.PersonalRoom("bob")

	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m1", SenderID: "alice", Target: room, Content: "one"}))
	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m2", SenderID: "bob", Target: room, Content: "two"}))

	// Any participant may hide, and nothing is broadcast.
	require.NoError(t, f.d.DeleteForMe(ctx, "bob", "m1"))
	assertSilent(t, f.alice)
	assertSilent(t, f.bob)

	bobView, err := f.d.Recent(ctx, "bob", room, 50)
	require.NoError(t, err)
	require.Len(t, bobView, 1)
	assert.Equal(t, "m2", bobView[0].ID)

	aliceView, err := f.d.Recent(ctx, "alice", room, 50)
	require.NoError(t, err)
	assert.Len(t, aliceView, 2, "hide is per-user")
}

func TestDispatcher_RecentRedactsTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := domain.PersonalRoom("bob")

	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m1", SenderID: "alice", Target: room, Content: "secret"}))
	require.NoError(t, f.d.Delete(ctx, "alice", "m1"))

	view, err := f.d.Recent(ctx, "bob", room, 50)
	require.NoError(t, err)
	require.Len(t, view, 1)
	assert.True(t, view[0].IsDeleted)
	assert.Empty(t, view[0].Content)
}
