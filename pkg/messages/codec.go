package messages

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the on-wire frame around a message payload.
type Envelope struct {
	ID      string          `json:"id"`
	Tag     string          `json:"tag"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// registry maps wire tags to payload decoders.
var registry = map[string]func(json.RawMessage) (Message, error){}

// Register installs a decoder for a tag. Registering the same tag twice is a
// programmer error.
func Register(tag string, decode func(json.RawMessage) (Message, error)) {
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("messages: duplicate registration of tag %q", tag))
	}
	registry[tag] = decode
}

// decodeAs unmarshals a payload into a value of the concrete message type.
// Unknown fields are ignored and absent fields zeroed, so both sides of a
// link can be upgraded independently.
func decodeAs[T Message](payload json.RawMessage) (Message, error) {
	var v T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func init() {
	Register(TagNewMasterDetected, decodeAs[NewMasterDetected])
	Register(TagNoMasterDetected, decodeAs[NoMasterDetected])
	Register(TagRegisterAgent, decodeAs[RegisterAgent])
	Register(TagReregisterAgent, decodeAs[ReregisterAgent])
	Register(TagAgentRegistered, decodeAs[AgentRegistered])
	Register(TagAgentReregistered, decodeAs[AgentReregistered])
	Register(TagRunTask, decodeAs[RunTask])
	Register(TagKillTask, decodeAs[KillTask])
	Register(TagKillFramework, decodeAs[KillFramework])
	Register(TagFrameworkMessage, decodeAs[FrameworkMessage])
	Register(TagUpdateFramework, decodeAs[UpdateFramework])
	Register(TagStatusUpdate, decodeAs[StatusUpdate])
	Register(TagStatusUpdateAck, decodeAs[StatusUpdateAck])
	Register(TagRegisterExecutor, decodeAs[RegisterExecutor])
	Register(TagExecutorRegistered, decodeAs[ExecutorRegistered])
	Register(TagKillExecutor, decodeAs[KillExecutor])
	Register(TagExitedExecutor, decodeAs[ExitedExecutor])
	Register(TagPing, decodeAs[Ping])
	Register(TagPong, decodeAs[Pong])
}

// Encode frames a message for the wire.
func Encode(from string, msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msg.Tag(), err)
	}
	return json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Tag:     msg.Tag(),
		From:    from,
		Payload: payload,
	})
}

// Decode parses an envelope and its payload. The returned message is a
// value of the concrete type registered for the tag, ready for a type
// switch.
func Decode(data []byte) (from string, msg Message, err error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	decode, ok := registry[env.Tag]
	if !ok {
		return "", nil, fmt.Errorf("unknown message tag %q", env.Tag)
	}

	msg, err = decode(env.Payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode %s payload: %w", env.Tag, err)
	}
	return env.From, msg, nil
}
