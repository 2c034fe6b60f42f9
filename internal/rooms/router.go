package rooms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pulseim/pulse/internal/domain"
)

// Router authorizes room joins. Rooms carry no state here beyond the
// hub's subscriber sets; existence and membership rules live in the
// owning domain model and are re-verified on every join, never cached.
type Router struct {
	members domain.MembershipStore
	logger  *slog.Logger
}

// NewRouter builds a router over the external membership collaborator.
func NewRouter(members domain.MembershipStore) *Router {
	return &Router{
		members: members,
		logger:  slog.Default().With("component", "rooms"),
	}
}

// AuthorizeJoin decides whether a user may subscribe to a room. A user
// is always allowed into their own personal room and never into someone
// else's; channel, group and community joins are delegated to the
// membership store.
func (r *Router) AuthorizeJoin(ctx context.Context, userID string, key domain.RoomKey) error {
	if !key.Type.Valid() || key.ID == "" {
		return fmt.Errorf("%w: invalid room key %q", domain.ErrValidation, key)
	}

	if key.Type == domain.TargetUser {
		if key.ID == userID {
			return nil
		}
		return fmt.Errorf("%w: cannot join another user's personal room", domain.ErrAuthorization)
	}

	ok, err := r.members.IsMember(ctx, userID, key)
	if err != nil {
		return fmt.Errorf("membership lookup for %s: %w", key, err)
	}
	if !ok {
		r.logger.Debug("join denied", "user_id", userID, "room", key.String())
		return fmt.Errorf("%w: not a member of %s", domain.ErrAuthorization, key)
	}
	return nil
}
