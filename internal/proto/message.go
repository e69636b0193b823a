package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeMessage = "message"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMessage  = "message"
	EventStatus   = "status"
	EventSystem   = "system"
	EventUserList = "user_list"
	EventError    = "error"

	// MessageTypeFile marks a message payload that carries an attachment.
	MessageTypeFile = "file"
)

// MessageData is a chat line from the client.
type MessageData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventChatMessage is a room message. File fields are set only when Type is "file".
type EventChatMessage struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsAdmin   bool   `json:"is_admin"`

	Type            string `json:"type,omitempty"`
	Filename        string `json:"filename,omitempty"`
	StorageFilename string `json:"storage_filename,omitempty"`
	URL             string `json:"url,omitempty"`
	FileType        string `json:"filetype,omitempty"`
	FileSize        int64  `json:"filesize,omitempty"`
}

// EventNotice carries status and system text.
type EventNotice struct {
	Message string `json:"message"`
}

// User is one entry of a user list.
type User struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// EventUserListData is the current room membership.
type EventUserListData struct {
	Users []User `json:"users"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// NewError builds an error envelope.
func NewError(code, msg string) *Outbound {
	return &Outbound{
		Type:  OutboundTypeError,
		Event: EventError,
		Error: &Error{Code: code, Msg: msg},
	}
}
