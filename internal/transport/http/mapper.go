package http

import (
	"encoding/json"

	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*chat.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin, proto.InboundTypeLeave:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Scope == "" {
			return nil, &proto.Error{Code: chat.ErrCodeBadRequest, Msg: "scope is required"}, nil
		}
		scope, err := chat.ParseScopeKey(join.Scope)
		if err != nil {
			return nil, &proto.Error{Code: chat.ErrCodeBadRequest, Msg: "malformed scope"}, nil
		}
		kind := chat.CommandJoinScope
		if inbound.Type == proto.InboundTypeLeave {
			kind = chat.CommandLeaveScope
		}
		return &chat.Command{Kind: kind, Scope: scope}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func messageToWire(msg chat.Message) proto.EventMessage {
	wire := proto.EventMessage{
		ID:       msg.ID,
		Scope:    msg.Scope.Key(),
		SenderID: msg.SenderID,
		Sender:   msg.SenderName,
		Body:     msg.Body,
		TS:       msg.CreatedAt.UnixMilli(),
	}
	if msg.Attachment != nil {
		wire.Attachment = &proto.AttachmentData{
			URL:  msg.Attachment.URL,
			Kind: string(msg.Attachment.Kind),
		}
	}
	return wire
}

func outboundFromEvent(event *chat.Event) proto.Outbound {
	switch event.Kind {
	case chat.EventPushMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data:  messageToWire(event.Message),
		}
	case chat.EventFeedMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameFeed,
			Data:  messageToWire(event.Message),
		}
	case chat.EventPresence:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNamePresence,
			Data: proto.EventPresence{
				UserID: event.Presence.UserID,
				User:   event.Presence.Username,
				Online: event.Presence.Online,
			},
		}
	case chat.EventHistory:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageToWire(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameHistory,
			Data: proto.EventHistory{
				Scope:    event.Scope.Key(),
				Messages: messages,
			},
		}
	case chat.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
