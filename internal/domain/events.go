package domain

// Outbound event names pushed from the core to clients.
const (
	EventNewMessage          = "new_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventReactionAdded       = "reaction_added"
	EventReactionRemoved     = "reaction_removed"
	EventMessageRead         = "message_read"
	EventUserTyping          = "user_typing"
	EventFriendOnline        = "friend_online"
	EventFriendOffline       = "friend_offline"
	EventFriendStatusChanged = "friend_status_changed"
	EventMessageSent         = "message_sent"
	EventMessageError        = "message_error"
	EventRoomJoined          = "room_joined"
	EventRoomLeft            = "room_left"
	EventMessageHistory      = "message_history"
	EventError               = "error"
)

// Inbound action names accepted from clients.
const (
	ActionJoinRoom       = "join_room"
	ActionLeaveRoom      = "leave_room"
	ActionSendMessage    = "send_message"
	ActionEditMessage    = "edit_message"
	ActionDeleteMessage  = "delete_message"
	ActionDeleteForMe    = "delete_for_me"
	ActionAddReaction    = "add_reaction"
	ActionRemoveReaction = "remove_reaction"
	ActionTyping         = "typing"
	ActionMarkRead       = "mark_read"
	ActionChangeStatus   = "change_status"
)
