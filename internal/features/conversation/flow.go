// Package conversation keeps the single active multi-step flow of every user.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind string

const (
	KindAwaitingUsername        Kind = "awaiting_username"
	KindAwaitingBio             Kind = "awaiting_bio"
	KindAwaitingConfession      Kind = "awaiting_confession"
	KindAwaitingComment         Kind = "awaiting_comment"
	KindAwaitingRejectionReason Kind = "awaiting_rejection_reason"
	KindAwaitingBlockTarget     Kind = "awaiting_block_user"
	KindAwaitingMessageTarget   Kind = "awaiting_message_user"
	KindAwaitingMessageBody     Kind = "awaiting_message_content"
	KindAwaitingBroadcastBody   Kind = "awaiting_broadcast"
)

// ErrUnknownFlow is returned by Decode for an envelope whose kind is not known.
var ErrUnknownFlow = errors.New("unknown flow kind")

// Flow is one variant of the closed set below. Every variant carries exactly
// the payload its continuation needs.
type Flow interface {
	Kind() Kind
	// AdminOnly flows must re-check admin membership when their input arrives.
	AdminOnly() bool
}

type AwaitingUsername struct {
	OriginChatID int64 `json:"origin_chat_id"`
}

type AwaitingBio struct{}

type AwaitingConfession struct{}

type AwaitingComment struct {
	ConfessionID string `json:"confession_id"`
}

type AwaitingRejectionReason struct {
	ConfessionID string `json:"confession_id"`
}

type AwaitingBlockTarget struct{}

type AwaitingMessageTarget struct{}

type AwaitingMessageBody struct {
	TargetUserID int64 `json:"target_user_id"`
}

type AwaitingBroadcastBody struct{}

func (AwaitingUsername) Kind() Kind        { return KindAwaitingUsername }
func (AwaitingBio) Kind() Kind             { return KindAwaitingBio }
func (AwaitingConfession) Kind() Kind      { return KindAwaitingConfession }
func (AwaitingComment) Kind() Kind         { return KindAwaitingComment }
func (AwaitingRejectionReason) Kind() Kind { return KindAwaitingRejectionReason }
func (AwaitingBlockTarget) Kind() Kind     { return KindAwaitingBlockTarget }
func (AwaitingMessageTarget) Kind() Kind   { return KindAwaitingMessageTarget }
func (AwaitingMessageBody) Kind() Kind     { return KindAwaitingMessageBody }
func (AwaitingBroadcastBody) Kind() Kind   { return KindAwaitingBroadcastBody }

func (AwaitingUsername) AdminOnly() bool        { return false }
func (AwaitingBio) AdminOnly() bool             { return false }
func (AwaitingConfession) AdminOnly() bool      { return false }
func (AwaitingComment) AdminOnly() bool         { return false }
func (AwaitingRejectionReason) AdminOnly() bool { return true }
func (AwaitingBlockTarget) AdminOnly() bool     { return true }
func (AwaitingMessageTarget) AdminOnly() bool   { return true }
func (AwaitingMessageBody) AdminOnly() bool     { return true }
func (AwaitingBroadcastBody) AdminOnly() bool   { return true }

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes f together with its kind tag.
func Encode(f Flow) ([]byte, error) {
	if f == nil {
		return nil, errors.New("nil flow")
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: f.Kind(), Payload: payload})
}

// Decode restores the variant named by the envelope kind.
func Decode(data []byte) (Flow, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode flow envelope: %w", err)
	}

	var (
		f   Flow
		err error
	)
	switch env.Kind {
	case KindAwaitingUsername:
		f, err = decodePayload[AwaitingUsername](env.Payload)
	case KindAwaitingBio:
		f = AwaitingBio{}
	case KindAwaitingConfession:
		f = AwaitingConfession{}
	case KindAwaitingComment:
		f, err = decodePayload[AwaitingComment](env.Payload)
	case KindAwaitingRejectionReason:
		f, err = decodePayload[AwaitingRejectionReason](env.Payload)
	case KindAwaitingBlockTarget:
		f = AwaitingBlockTarget{}
	case KindAwaitingMessageTarget:
		f = AwaitingMessageTarget{}
	case KindAwaitingMessageBody:
		f, err = decodePayload[AwaitingMessageBody](env.Payload)
	case KindAwaitingBroadcastBody:
		f = AwaitingBroadcastBody{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return f, nil
}

func decodePayload[T Flow](raw json.RawMessage) (Flow, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
