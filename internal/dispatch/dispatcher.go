package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/metrics"
)

// Dispatcher persists chat messages and fans them out with all-or-nothing
// semantics: a message is either durably stored and delivered everywhere
// it belongs, or the sender alone learns that it failed. Fan-out never
// precedes a successful write.
type Dispatcher struct {
	store         domain.MessageStore
	hub           *hub.Hub
	validate      *validator.Validate
	maxContentLen int
	logger        *slog.Logger
	now           func() time.Time
}

// New builds a dispatcher. maxContentLen bounds message content bytes.
func New(store domain.MessageStore, h *hub.Hub, maxContentLen int) *Dispatcher {
	return &Dispatcher{
		store:         store,
		hub:           h,
		validate:      validator.New(),
		maxContentLen: maxContentLen,
		logger:        slog.Default().With("component", "dispatch"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SubmitRequest is one send_message submission from a connection.
type SubmitRequest struct {
	SenderConn  string `validate:"required"`
	SenderID    string `validate:"required"`
	Target      domain.RoomKey
	Content     string
	MessageType string
	ReplyTo     string
	// TempID is the client's optimistic-UI handle; it is echoed back on
	// the ack so the client can reconcile, and never broadcast.
	TempID string
}

// sentAck is the point-to-point message_sent payload.
type sentAck struct {
	TempID    string    `json:"temp_id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorAck is the point-to-point message_error payload.
type ErrorAck struct {
	TempID string `json:"temp_id"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Submit validates, persists and fans out one message, then acks the
// originating connection. Uninvolved room members observe nothing when
// any step fails.
func (d *Dispatcher) Submit(ctx context.Context, req SubmitRequest) {
	if err := d.validateSubmit(req); err != nil {
		d.rejectSubmit(req, err)
		return
	}

	msg := &domain.Message{
		ID:          uuid.NewString(),
		SenderID:    req.SenderID,
		Target:      req.Target,
		Content:     req.Content,
		MessageType: req.MessageType,
		ReplyTo:     req.ReplyTo,
		CreatedAt:   d.now(),
	}
	if msg.MessageType == "" {
		msg.MessageType = domain.MessageTypeText
	}
	if msg.ReplyTo != "" {
		// Replies thread under the parent.
		if parent, err := d.store.Get(ctx, msg.ReplyTo); err == nil {
			msg.ThreadID = parent.ThreadID
			if msg.ThreadID == "" {
				msg.ThreadID = parent.ID
			}
		}
	}

	if err := d.store.Append(ctx, msg); err != nil {
		d.logger.Error("message persist failed", "sender", req.SenderID, "target", req.Target.String(), "error", err)
		d.rejectSubmit(req, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
		return
	}

	metrics.MessagesPersisted.WithLabelValues(string(req.Target.Type)).Inc()
	d.hub.BroadcastToMessageScope(msg.Target, msg.SenderID, domain.EventNewMessage, msg)
	d.hub.SendToConn(req.SenderConn, domain.EventMessageSent, sentAck{
		TempID:    req.TempID,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
	})
}

// Edit replaces a message's content. Only the original sender may edit;
// the superseded revision is archived and the edit re-broadcast to the
// same scope the original reached.
func (d *Dispatcher) Edit(ctx context.Context, requesterID, messageID, newContent string) error {
	if strings.TrimSpace(newContent) == "" || len(newContent) > d.maxContentLen {
		return fmt.Errorf("%w: content must be 1-%d bytes", domain.ErrValidation, d.maxContentLen)
	}

	msg, err := d.store.Mutate(ctx, messageID, func(m *domain.Message) error {
		if m.SenderID != requesterID {
			return fmt.Errorf("%w: only the sender may edit", domain.ErrAuthorization)
		}
		if m.IsDeleted {
			return fmt.Errorf("%w: message deleted", domain.ErrNotFound)
		}
		m.ApplyEdit(newContent, d.now())
		return nil
	})
	if err != nil {
		return err
	}

	d.hub.BroadcastToMessageScope(msg.Target, msg.SenderID, domain.EventMessageEdited, msg)
	return nil
}

// deletedEvent is the message_deleted broadcast payload.
type deletedEvent struct {
	MessageID string         `json:"message_id"`
	Target    domain.RoomKey `json:"target"`
	DeletedBy string         `json:"deleted_by"`
}

// Delete tombstones a message for everyone. Sender-only; the record is
// retained so replies and threads keep their anchor.
func (d *Dispatcher) Delete(ctx context.Context, requesterID, messageID string) error {
	msg, err := d.store.Mutate(ctx, messageID, func(m *domain.Message) error {
		if m.SenderID != requesterID {
			return fmt.Errorf("%w: only the sender may delete for everyone", domain.ErrAuthorization)
		}
		m.IsDeleted = true
		return nil
	})
	if err != nil {
		return err
	}

	d.hub.BroadcastToMessageScope(msg.Target, msg.SenderID, domain.EventMessageDeleted, deletedEvent{
		MessageID: msg.ID,
		Target:    msg.Target,
		DeletedBy: requesterID,
	})
	return nil
}

// DeleteForMe hides a message from the requester's subsequent reads.
// Any participant may do this; nothing is broadcast.
func (d *Dispatcher) DeleteForMe(ctx context.Context, requesterID, messageID string) error {
	_, err := d.store.Mutate(ctx, messageID, func(m *domain.Message) error {
		m.HideFor(requesterID)
		return nil
	})
	return err
}

// Recent returns a room's history in commit order for one reader,
// applying delete-for-me filtering and tombstone redaction.
func (d *Dispatcher) Recent(ctx context.Context, readerID string, room domain.RoomKey, limit int) ([]*domain.Message, error) {
	msgs, err := d.store.Recent(ctx, room, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.HiddenFrom(readerID) {
			continue
		}
		out = append(out, m.Redacted())
	}
	return out, nil
}

func (d *Dispatcher) validateSubmit(req SubmitRequest) error {
	if err := d.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if !req.Target.Type.Valid() || req.Target.ID == "" {
		return fmt.Errorf("%w: invalid target", domain.ErrValidation)
	}
	attachment := req.MessageType == domain.MessageTypeImage ||
		req.MessageType == domain.MessageTypeFile ||
		req.MessageType == domain.MessageTypeAttachment
	if !attachment && strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: empty content", domain.ErrValidation)
	}
	if len(req.Content) > d.maxContentLen {
		return fmt.Errorf("%w: content exceeds %d bytes", domain.ErrValidation, d.maxContentLen)
	}
	return nil
}

// rejectSubmit reports a failed submission to the originator only; no
// fan-out of any kind happens for the failed message.
func (d *Dispatcher) rejectSubmit(req SubmitRequest, err error) {
	metrics.MessageErrors.Inc()
	d.hub.SendToConn(req.SenderConn, domain.EventMessageError, ErrorAck{
		TempID: req.TempID,
		Code:   domain.ErrorCode(err),
		Reason: err.Error(),
	})
}
