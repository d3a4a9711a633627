// Package relay connects the shell to the messaging relay: a websocket for
// logins and messages, plain HTTP for the contact lists.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

type FrameType string

const (
	FrameLogin   FrameType = "login"   // relay -> shell, carries the self account
	FrameMessage FrameType = "message" // relay -> shell
	FrameSend    FrameType = "send"    // shell -> relay, 1:1 only
)

type Frame struct {
	Type    FrameType `json:"type"`
	Account int64     `json:"account,omitempty"`  // login
	Chat    int64     `json:"chat,omitempty"`     // message: group code or peer
	IsGroup bool      `json:"is_group,omitempty"` // message
	Sender  int64     `json:"sender,omitempty"`   // message
	Target  int64     `json:"target,omitempty"`   // send
	Content string    `json:"content,omitempty"`
}

var ErrBadFrame = errors.New("bad frame")

func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	switch f.Type {
	case FrameLogin:
		if f.Account == 0 {
			return Frame{}, fmt.Errorf("%w: login without account", ErrBadFrame)
		}
	case FrameMessage:
		if f.Chat == 0 || f.Sender == 0 {
			return Frame{}, fmt.Errorf("%w: message without chat or sender", ErrBadFrame)
		}
	case FrameSend:
		if f.Target == 0 {
			return Frame{}, fmt.Errorf("%w: send without target", ErrBadFrame)
		}
	default:
		return Frame{}, fmt.Errorf("%w: unknown type %q", ErrBadFrame, f.Type)
	}
	return f, nil
}
