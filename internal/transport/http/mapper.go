package http

import (
	"encoding/json"
	"time"

	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/proto"
)

// inboundToText extracts the chat line from a client frame.
// A non-nil *proto.Error is reported back to the client and the connection stays open.
func inboundToText(inbound proto.Inbound) (string, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeMessage:
		var msg proto.MessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid message data"}
		}
		return msg.Text, nil
	default:
		return "", &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  messagePayload(event.Message),
		}
	case core.EventStatus:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventStatus,
			Data:  proto.EventNotice{Message: event.Text},
		}
	case core.EventSystem:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSystem,
			Data:  proto.EventNotice{Message: event.Text},
		}
	case core.EventUserList:
		users := make([]proto.User, 0, len(event.Users))
		for _, m := range event.Users {
			users = append(users, proto.User{Username: m.Username, IsAdmin: m.IsAdmin})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserList,
			Data:  proto.EventUserListData{Users: users},
		}
	case core.EventError:
		if event.Error == nil {
			return *proto.NewError(core.ErrCodeInternal, "unknown error")
		}
		return *proto.NewError(event.Error.Code, event.Error.Message)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messagePayload(msg *core.Message) proto.EventChatMessage {
	if msg == nil {
		return proto.EventChatMessage{}
	}
	out := proto.EventChatMessage{
		ID:        msg.ID,
		Username:  msg.Username,
		Text:      msg.Text,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
		IsAdmin:   msg.IsAdmin,
	}
	if f := msg.File; f != nil {
		out.Type = proto.MessageTypeFile
		out.Filename = f.Filename
		out.StorageFilename = f.StorageFilename
		out.URL = f.URL
		out.FileType = f.FileType
		out.FileSize = f.FileSize
	}
	return out
}
