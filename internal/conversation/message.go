// Package conversation implements the chat client: an append-only transcript
// and one proxy exchange per user turn.
package conversation

import (
	"strings"

	"github.com/google/uuid"
)

// Speaker identifies who produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message is one turn in the conversation.
type Message struct {
	ID      string  `json:"id"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	// Pending marks the in-flight assistant placeholder returned by View.
	// Committed messages never have it set.
	Pending bool `json:"pending,omitempty"`
}

func newMessage(speaker Speaker, text string) Message {
	return Message{ID: uuid.NewString(), Speaker: speaker, Text: text}
}

// HistoryPolicy selects which committed messages are sent upstream.
type HistoryPolicy interface {
	Select(messages []Message) []Message
}

// WholeHistory sends every message on every turn. The transcript grows
// without bound.
type WholeHistory struct{}

// Select returns messages unchanged.
func (WholeHistory) Select(messages []Message) []Message {
	return messages
}

const (
	questionLabel = "question: "
	answerLabel   = "answer: "
	turnSeparator = "\n\n"
)

// EncodeTranscript renders messages as one prompt string: user turns as
// "question: ", assistant turns as "answer: ", each followed by a blank line.
// Pending placeholders are skipped.
func EncodeTranscript(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Pending {
			continue
		}
		if m.Speaker == SpeakerUser {
			b.WriteString(questionLabel)
		} else {
			b.WriteString(answerLabel)
		}
		b.WriteString(m.Text)
		b.WriteString(turnSeparator)
	}
	return b.String()
}
