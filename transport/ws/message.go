// SPDX-License-Identifier: EPL-2.0

package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kitchensink-io/kitchensink/audio"
)

// Well-known message types for the typed WebSocket transport. Any other
// string is valid and delivered to the receiver's MessageHandler.
const (
	TypeAudio = "audio"
	TypeText  = "text"
)

// Message is the JSON envelope used by the typed WebSocket transport.
// Audio payloads are base64-encoded raw PCM16-LE bytes; other payloads
// are arbitrary JSON.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage builds an envelope around any JSON-serializable payload.
func NewMessage(msgType string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w", err)
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// NewAudioMessage encodes a chunk as an "audio" envelope.
func NewAudioMessage(c audio.Chunk) (Message, error) {
	return NewMessage(TypeAudio, base64.StdEncoding.EncodeToString(c.Bytes()))
}

// AudioChunk decodes an "audio" envelope into a chunk with the given
// format.
func (m Message) AudioChunk(f audio.Format) (audio.Chunk, error) {
	if m.Type != TypeAudio {
		return audio.Chunk{}, fmt.Errorf("%w: %q", ErrNotAudio, m.Type)
	}

	var b64 string
	if err := json.Unmarshal(m.Payload, &b64); err != nil {
		return audio.Chunk{}, fmt.Errorf("%w", err)
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return audio.Chunk{}, fmt.Errorf("%w", err)
	}

	return audio.ChunkFromBytes(data, f), nil
}
