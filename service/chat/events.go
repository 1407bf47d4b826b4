package chat

import "encoding/json"

// Server→client event names. Clients switch on the event field of each
// frame; payload shape depends on the event.
const (
	EventNewMessage       = "newMessage"
	EventStatusUpdate     = "messageStatusUpdate"
	EventConversationRead = "conversationRead"
	EventOnlineUsers      = "onlineUsers"
)

// Frame is the wire format of every push. Payload is kept raw so frames
// can be re-forwarded between gateways without a decode/encode cycle.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ReadReceipt is the payload of a conversationRead event.
type ReadReceipt struct {
	ReaderID string `json:"readerId"`
}

// EncodeFrame marshals an event frame ready for a websocket text message.
func EncodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: raw})
}
