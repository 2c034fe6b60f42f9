package friends

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/presence"
	"github.com/pulseim/pulse/internal/pubsub"
	"github.com/pulseim/pulse/internal/roster"
)

// mockNotifier records pushes for users without an active connection.
type mockNotifier struct {
	mu     sync.Mutex
	pushes map[string][]domain.Notification
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{pushes: make(map[string][]domain.Notification)}
}

func (m *mockNotifier) Push(_ context.Context, userID string, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes[userID] = append(m.pushes[userID], n)
	return nil
}

func (m *mockNotifier) forUser(userID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes[userID]
}

func transitionMsg(t *testing.T, tr presence.Transition) pubsub.Message {
	t.Helper()
	payload, err := json.Marshal(tr)
	require.NoError(t, err)
	return pubsub.Message{Topic: presence.TopicTransition, UserID: tr.UserID, Payload: payload}
}

func TestFanout_DeliversToOnlineFriends(t *testing.T) {
	h := hub.New()
	graph := roster.NewMemoryFriends()
	registry := presence.NewRegistry(pubsub.NewWatermillBus())
	f := New(graph, registry, h, nil)

	graph.Befriend("alice", "bob")
	graph.Befriend("alice", "carol")

	// Bob is online, Carol is not. A stranger is online but unrelated.
	bob := hub.NewClient("b1", "bob", 16)
	stranger := hub.NewClient("s1", "dave", 16)
	h.Register(bob)
	h.Register(stranger)
	registry.Connect("bob", "b1")

	err := f.handleTransition(context.Background(), transitionMsg(t, presence.Transition{
		UserID: "alice",
		Event:  domain.EventFriendOnline,
		Status: domain.StatusOnline,
	}))
	require.NoError(t, err)

	select {
	case frame := <-bob.Outbound():
		var env hub.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		assert.Equal(t, domain.EventFriendOnline, env.Type)
	default:
		t.Fatal("bob should have received the friend event")
	}

	select {
	case frame := <-stranger.Outbound():
		t.Fatalf("non-friend received frame: %s", frame)
	default:
	}
}

func TestFanout_OfflineFriendGetsNotification(t *testing.T) {
	h := hub.New()
	graph := roster.NewMemoryFriends()
	registry := presence.NewRegistry(pubsub.NewWatermillBus())
	notifier := newMockNotifier()
	f := New(graph, registry, h, notifier)

	graph.Befriend("alice", "bob")

	err := f.handleTransition(context.Background(), transitionMsg(t, presence.Transition{
		UserID: "alice",
		Event:  domain.EventFriendOnline,
		Status: domain.StatusOnline,
	}))
	require.NoError(t, err)

	pushes := notifier.forUser("bob")
	require.Len(t, pushes, 1)
	assert.Equal(t, domain.EventFriendOnline, pushes[0].Event)

	var ev friendEvent
	require.NoError(t, json.Unmarshal(pushes[0].Payload, &ev))
	assert.Equal(t, "alice", ev.UserID)
}

func TestFanout_BadPayloadIsAcked(t *testing.T) {
	f := New(roster.NewMemoryFriends(), presence.NewRegistry(pubsub.NewWatermillBus()), hub.New(), nil)

	err := f.handleTransition(context.Background(), pubsub.Message{
		Topic:   presence.TopicTransition,
		Payload: []byte("{not json"),
	})
	assert.NoError(t, err, "malformed payloads must not be redelivered")
}

func TestFanout_EndToEndOverBus(t *testing.T) {
	bus := pubsub.NewWatermillBus()
	t.Cleanup(func() { _ = bus.Close() })

	h := hub.New()
	graph := roster.NewMemoryFriends()
	registry := presence.NewRegistry(bus)
	f := New(graph, registry, h, nil)
	require.NoError(t, f.Start(context.Background(), bus))

	graph.Befriend("alice", "bob")
	bob := hub.NewClient("b1", "bob", 16)
	h.Register(bob)
	registry.Connect("bob", "b1")

	// Alice connecting publishes a transition the fan-out must pick up.
	registry.Connect("alice", "a1")

	require.Eventually(t, func() bool {
		select {
		case frame := <-bob.Outbound():
			var env hub.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				return false
			}
			return env.Type == domain.EventFriendOnline
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
