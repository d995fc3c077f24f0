package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/vision-helper/internal/classifier"
	"github.com/wolfman30/vision-helper/internal/persona"
	"github.com/wolfman30/vision-helper/internal/speech"
)

// Service describes what the reading assistant can do for a user.
type Service interface {
	Chat(ctx context.Context, message string) (Reply, error)
	Explain(ctx context.Context, text string, mode Mode) (Reply, error)
	Narrate(ctx context.Context, text string) (Reply, error)
	ReadImage(ctx context.Context, image []byte, mode Mode, lang string) (Reply, error)
	Persona() persona.Persona
	PersonaHistory() []persona.SwitchEvent
	ResetPersona() persona.Persona
	Conversation() Snapshot
	ResetConversation()
}

// Mode selects how a document is handled.
type Mode string

const (
	ModeGeneral Mode = "general"
	ModeFraud   Mode = "fraud"
)

// ParseMode defaults unknown values to ModeGeneral.
func ParseMode(s string) Mode {
	if Mode(s) == ModeFraud {
		return ModeFraud
	}
	return ModeGeneral
}

// PersonaRef identifies the persona that produced a reply.
type PersonaRef struct {
	ID   persona.ID `json:"id"`
	Name string     `json:"name"`
	Icon string     `json:"icon"`
}

func refFor(p persona.Persona) PersonaRef {
	return PersonaRef{ID: p.ID, Name: p.Name, Icon: p.Icon}
}

// Reply is returned for every user action, including failures that resolve
// to a fallback message.
type Reply struct {
	Text       string              `json:"text"`
	Kind       Kind                `json:"kind"`
	Persona    PersonaRef          `json:"persona"`
	Category   classifier.Category `json:"category,omitempty"`
	Continued  bool                `json:"continued"`
	HasPending bool                `json:"has_pending"`
	Speech     speech.Utterance    `json:"speech"`
	// Recognized is the OCR output for image requests.
	Recognized string `json:"recognized_text,omitempty"`
	// Notice is a short status line such as an OCR timeout.
	Notice    string    `json:"notice,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the visible state of the conversation.
type Snapshot struct {
	Turns    []Turn          `json:"turns"`
	Document string          `json:"document,omitempty"`
	Capacity int             `json:"capacity"`
	Persona  persona.Persona `json:"persona"`
}
