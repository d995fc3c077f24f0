package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/vision-helper/internal/generation"
)

// DefaultCapacity keeps the last five exchanges.
const DefaultCapacity = 10

// MinCapacity leaves room for a new user turn beside a retained pending turn.
const MinCapacity = 2

const (
	systemTurnID   = "system"
	documentTurnID = "document"
	documentPrefix = "目前文件內容：\n"
)

// Role is the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation log.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Continued bool      `json:"continued"`
	Pending   bool      `json:"pending"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnOption sets flags on an assistant turn.
type TurnOption func(*Turn)

// Continued marks a turn whose remainder is held back as a pending turn.
func Continued() TurnOption {
	return func(t *Turn) { t.Continued = true }
}

// Pending marks a turn as not yet delivered to the user.
func Pending() TurnOption {
	return func(t *Turn) { t.Pending = true }
}

// ContextStore is the bounded short-term memory of one conversation.
type ContextStore struct {
	mu       sync.Mutex
	capacity int
	turns    []Turn
	document string
	now      func() time.Time
}

// NewContextStore creates a store holding at most capacity turns. Zero or a
// negative capacity selects DefaultCapacity; 1 is raised to MinCapacity.
func NewContextStore(capacity int) *ContextStore {
	switch {
	case capacity < 1:
		capacity = DefaultCapacity
	case capacity < MinCapacity:
		capacity = MinCapacity
	}
	return &ContextStore{capacity: capacity, now: time.Now}
}

// AppendUser records a user submission.
func (s *ContextStore) AppendUser(text string) Turn {
	return s.append(Turn{Role: RoleUser, Text: text})
}

// AppendAssistant records an assistant reply. Appending a pending turn
// supersedes any earlier pending turn, which is removed undelivered.
func (s *ContextStore) AppendAssistant(text string, opts ...TurnOption) Turn {
	t := Turn{Role: RoleAssistant, Text: text}
	for _, opt := range opts {
		opt(&t)
	}
	return s.append(t)
}

func (s *ContextStore) append(t Turn) Turn {
	t.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	t.Timestamp = s.now().UTC()
	if t.Pending {
		s.dropPendingLocked()
	}
	s.turns = append(s.turns, t)
	s.trimLocked()
	return t
}

// trimLocked drops the oldest turns until the store is at capacity, skipping
// the most recent assistant turn while it is pending.
func (s *ContextStore) trimLocked() {
	for len(s.turns) > s.capacity {
		protected := -1
		if i := s.lastAssistantLocked(); i >= 0 && s.turns[i].Pending {
			protected = i
		}
		victim := 0
		if victim == protected {
			victim = 1
		}
		s.turns = append(s.turns[:victim], s.turns[victim+1:]...)
	}
}

func (s *ContextStore) lastAssistantLocked() int {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

func (s *ContextStore) pendingIndexLocked() int {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Pending {
			return i
		}
	}
	return -1
}

func (s *ContextStore) dropPendingLocked() {
	kept := s.turns[:0]
	for _, t := range s.turns {
		if !t.Pending {
			kept = append(kept, t)
		}
	}
	s.turns = kept
}

// Pending returns the undelivered continuation, if any.
func (s *ContextStore) Pending() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.pendingIndexLocked(); i >= 0 {
		return s.turns[i], true
	}
	return Turn{}, false
}

// TakePending removes and returns the undelivered continuation. The caller
// records it again as a normal assistant turn once it has been delivered.
func (s *ContextStore) TakePending() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.pendingIndexLocked()
	if i < 0 {
		return Turn{}, false
	}
	t := s.turns[i]
	s.turns = append(s.turns[:i], s.turns[i+1:]...)
	return t, true
}

// SetDocument stores the text of the document the user is reading.
func (s *ContextStore) SetDocument(text string) {
	s.mu.Lock()
	s.document = strings.TrimSpace(text)
	s.mu.Unlock()
}

// Document returns the current document text.
func (s *ContextStore) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// ComposeHistory returns the turns to send to the model: the system prompt
// as a synthetic first user turn, the current document if one is set, then
// every delivered turn in order.
func (s *ContextStore) ComposeHistory(systemPrompt string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]Turn, 0, len(s.turns)+2)
	history = append(history, Turn{ID: systemTurnID, Role: RoleUser, Text: systemPrompt})
	if s.document != "" {
		history = append(history, Turn{ID: documentTurnID, Role: RoleUser, Text: documentPrefix + s.document})
	}
	for _, t := range s.turns {
		if t.Pending {
			continue
		}
		history = append(history, t)
	}
	return history
}

// Reset clears every turn and the document.
func (s *ContextStore) Reset() {
	s.mu.Lock()
	s.turns = nil
	s.document = ""
	s.mu.Unlock()
}

// Turns returns a copy of the stored turns, pending ones included.
func (s *ContextStore) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len reports the number of stored turns.
func (s *ContextStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Capacity reports the maximum number of stored turns.
func (s *ContextStore) Capacity() int {
	return s.capacity
}

// Contents converts turns to the generation wire format.
func Contents(turns []Turn) []generation.Content {
	out := make([]generation.Content, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleAssistant {
			out = append(out, generation.ModelText(t.Text))
			continue
		}
		out = append(out, generation.UserText(t.Text))
	}
	return out
}
