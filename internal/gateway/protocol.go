package gateway

import "encoding/json"

// inboundFrame is the envelope every client frame arrives in.
type inboundFrame struct {
	Action  string          `json:"action" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// errorAck is the generic point-to-point error acknowledgement for
// failed operations other than message submission (which carries its
// tempId in a message_error ack instead).
type errorAck struct {
	Action string `json:"action"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type joinRoomPayload struct {
	RoomType string `json:"room_type" validate:"required"`
	RoomID   string `json:"room_id" validate:"required"`
}

type sendMessagePayload struct {
	TargetType  string `json:"target_type" validate:"required"`
	TargetID    string `json:"target_id" validate:"required"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	ReplyTo     string `json:"reply_to"`
	TempID      string `json:"temp_id"`
}

type editMessagePayload struct {
	MessageID string `json:"message_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

type messageRefPayload struct {
	MessageID string `json:"message_id" validate:"required"`
}

type reactionPayload struct {
	MessageID string `json:"message_id" validate:"required"`
	Emoji     string `json:"emoji" validate:"required"`
}

type typingPayload struct {
	TargetType string `json:"target_type" validate:"required"`
	TargetID   string `json:"target_id" validate:"required"`
	IsTyping   bool   `json:"is_typing"`
}

type changeStatusPayload struct {
	Status        string `json:"status" validate:"required"`
	StatusMessage string `json:"status_message"`
}

// roomJoinedPayload acknowledges a join with the room's current members.
type roomJoinedPayload struct {
	RoomType string   `json:"room_type"`
	RoomID   string   `json:"room_id"`
	Members  []string `json:"members"`
}

// historyPayload carries recent room history to a newly joined connection.
type historyPayload struct {
	RoomType string `json:"room_type"`
	RoomID   string `json:"room_id"`
	Messages any    `json:"messages"`
}
