package ws

import "encoding/json"

type IncomingMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type OutgoingMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// sessionPayload is the body of "answer" and "advance" messages. Answer is
// absent or null when the player gives no answer.
type sessionPayload struct {
	SessionID string `json:"sessionId"`
	Answer    *int   `json:"answer"`
}
