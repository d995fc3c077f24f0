package persona

import (
	"sync"
	"time"

	"github.com/wolfman30/vision-helper/internal/classifier"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// SwitchEvent records one change of the active persona.
type SwitchEvent struct {
	From      ID     `json:"from"`
	To        ID     `json:"to"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// SwitchObserver is notified after every recorded switch.
type SwitchObserver interface {
	ObservePersonaSwitch(from, to string)
}

// Dispatcher tracks the active persona and its switch history. All methods are
// safe for concurrent use; a switch and its audit entry are applied together.
type Dispatcher struct {
	catalog  *Catalog
	logger   *logging.Logger
	observer SwitchObserver
	now      func() time.Time

	mu      sync.RWMutex
	active  ID
	history []SwitchEvent
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver reports switches to o (typically metrics).
func WithObserver(o SwitchObserver) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher creates a dispatcher with the default persona active. A nil
// catalog means DefaultCatalog.
func NewDispatcher(catalog *Catalog, opts ...Option) *Dispatcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	d := &Dispatcher{
		catalog: catalog,
		logger:  logging.Default(),
		now:     time.Now,
		active:  Default,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ForCategory maps a content category to the persona that should handle it.
func ForCategory(c classifier.Category) ID {
	switch c {
	case classifier.CategoryMedical:
		return Medical
	case classifier.CategoryFraud:
		return Security
	default:
		return Companion
	}
}

func switchReason(c classifier.Category) string {
	switch c {
	case classifier.CategoryMedical:
		return "檢測到醫療相關內容"
	case classifier.CategoryFraud:
		return "檢測到詐騙相關內容"
	default:
		return "一般內容或日常對話"
	}
}

// SelectForCategory activates the persona mapped to c and reports whether a
// switch happened. Selecting the already active persona records nothing.
func (d *Dispatcher) SelectForCategory(c classifier.Category) bool {
	target := ForCategory(c)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == target {
		return false
	}
	return d.switchLocked(target, switchReason(c))
}

// SwitchRole activates id and records the switch. It returns false for an ID
// that is not in the catalog.
func (d *Dispatcher) SwitchRole(id ID, reason string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.switchLocked(id, reason)
}

func (d *Dispatcher) switchLocked(id ID, reason string) bool {
	if _, ok := d.catalog.Get(id); !ok {
		d.logger.Warn("persona switch rejected", "to", string(id), "reason", reason)
		return false
	}
	from := d.active
	d.active = id
	d.history = append(d.history, SwitchEvent{
		From:      from,
		To:        id,
		Reason:    reason,
		Timestamp: d.now().UTC().Format(time.RFC3339Nano),
	})
	d.logger.Info("persona switched", "from", string(from), "to", string(id), "reason", reason)
	if d.observer != nil {
		d.observer.ObservePersonaSwitch(string(from), string(id))
	}
	return true
}

// ResetToDefault switches back to the companion persona.
func (d *Dispatcher) ResetToDefault() bool {
	return d.SwitchRole(Default, "重置到預設角色")
}

// Current returns the active persona.
func (d *Dispatcher) Current() Persona {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, _ := d.catalog.Get(d.active)
	return p
}

// PromptFor returns the system prompt for id, or for the active persona when
// id is omitted. Unknown IDs yield an empty prompt.
func (d *Dispatcher) PromptFor(id ...ID) string {
	target := d.Current().ID
	if len(id) > 0 && id[0] != "" {
		target = id[0]
	}
	p, ok := d.catalog.Get(target)
	if !ok {
		return ""
	}
	return p.SystemPrompt
}

// History returns a copy of the switch audit log, oldest first.
func (d *Dispatcher) History() []SwitchEvent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]SwitchEvent, len(d.history))
	copy(out, d.history)
	return out
}

// Catalog exposes the dispatcher's persona catalog.
func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}
