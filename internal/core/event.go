package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries a chat message or file attachment.
	EventMessage EventKind = iota
	// EventStatus announces joins, leaves and moderation actions.
	EventStatus
	// EventSystem answers informational commands such as /help.
	EventSystem
	// EventError reports a failure to the session that caused it.
	EventError
	// EventUserList delivers a membership snapshot.
	EventUserList
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventStatus:
		return "status"
	case EventSystem:
		return "system"
	case EventError:
		return "error"
	case EventUserList:
		return "user_list"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Text    string     // status and system events
	Message *Message   // EventMessage
	Users   []Member   // EventUserList
	Error   *CoreError // EventError
}

func statusEvent(text string) *Event {
	return &Event{Kind: EventStatus, Text: text}
}

func systemEvent(text string) *Event {
	return &Event{Kind: EventSystem, Text: text}
}

func errorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}

func messageEvent(msg Message) *Event {
	return &Event{Kind: EventMessage, Message: &msg}
}

func userListEvent(users []Member) *Event {
	return &Event{Kind: EventUserList, Users: users}
}
