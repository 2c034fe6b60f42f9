package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/storage"
)

type fixture struct {
	b     *Broadcaster
	store *storage.MemoryStore
	h     *hub.Hub

	alice *hub.Client // conn a1
	bob   *hub.Client // conn b1
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	h := hub.New()

	f := &fixture{
		b:     New(store, h),
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

func TestBroadcaster_TypingExcludesOriginator(t *testing.T) {
	f := newFixture(t)
	room, err := domain.NewRoomKey(domain.TargetChannel, "general")
	require.NoError(t, err)
	f.h.Join("a1", room)
	f.h.Join("b1", room)

	f.b.Typing("alice", "a1", room, true)

	env := recv(t, f.bob)
	assert.Equal(t, domain.EventUserTyping, env.Type)
	assertSilent(t, f.alice)

	// Nothing was persisted.
	recent, err := f.store.Recent(context.Background(), room, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestBroadcaster_ReactionAddAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob"), Content: "hi"}
	require.NoError(t, f.store.Append(ctx, msg))

	require.NoError(t, f.b.Reaction(ctx, "bob", "m1", "👍", true))

	env := recv(t, f.bob)
	assert.Equal(t, domain.EventReactionAdded, env.Type)
	echo := recv(t, f.alice)
	assert.Equal(t, domain.EventReactionAdded, echo.Type, "sender scope receives the delta too")

	stored, err := f.store.Get(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, stored.Reactions, 1)
	assert.Equal(t, "bob", stored.Reactions[0].UserID)

	require.NoError(t, f.b.Reaction(ctx, "bob", "m1", "👍", false))
	env = recv(t, f.bob)
	assert.Equal(t, domain.EventReactionRemoved, env.Type)

	stored, err = f.store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, stored.Reactions)
}

func TestBroadcaster_DuplicateReactionIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob")}))

	require.NoError(t, f.b.Reaction(ctx, "bob", "m1", "👍", true))
	recv(t, f.bob)
	recv(t, f.alice)

	// Same pair again: no state change, no broadcast.
	require.NoError(t, f.b.Reaction(ctx, "bob", "m1", "👍", true))
	assertSilent(t, f.bob)
	assertSilent(t, f.alice)

	stored, err := f.store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, stored.Reactions, 1)
}

func TestBroadcaster_RemoveAbsentReactionIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob")}))

	require.NoError(t, f.b.Reaction(ctx, "bob", "m1", "👍", false))
	assertSilent(t, f.bob)
	assertSilent(t, f.alice)
}

func TestBroadcaster_ReactionOnMissingMessage(t *testing.T) {
	f := newFixture(t)

	err := f.b.Reaction(context.Background(), "bob", "nope", "👍", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBroadcaster_MarkReadNotifiesAuthorOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Append(ctx, &domain.Message{ID: "m1", SenderID: "alice", Target: domain.PersonalRoom("bob")}))

	require.NoError(t, f.b.MarkRead(ctx, "bob", "m1"))

	env := recv(t, f.alice)
	assert.Equal(t, domain.EventMessageRead, env.Type)
	// Read receipts go to the author, not the room.
	assertSilent(t, f.bob)

	// Re-reading is idempotent and silent.
	require.NoError(t, f.b.MarkRead(ctx, "bob", "m1"))
	assertSilent(t, f.alice)

	stored, err := f.store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, stored.ReadBy, 1)
}
