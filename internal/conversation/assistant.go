package conversation

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wolfman30/vision-helper/internal/classifier"
	"github.com/wolfman30/vision-helper/internal/generation"
	"github.com/wolfman30/vision-helper/internal/locale"
	"github.com/wolfman30/vision-helper/internal/ocr"
	"github.com/wolfman30/vision-helper/internal/persona"
	"github.com/wolfman30/vision-helper/internal/speech"
	"github.com/wolfman30/vision-helper/pkg/logging"
)

// Observer receives per-request classification telemetry.
type Observer interface {
	ObserveClassification(category string)
}

// AssistantConfig wires an Assistant.
type AssistantConfig struct {
	// Generator is normally the request queue in front of the generation
	// client.
	Generator  generation.Generator
	Dispatcher *persona.Dispatcher
	Store      *ContextStore
	Segmenter  Segmenter
	Intent     *locale.ContinuationIntent
	OCR        *ocr.Service

	GenerationConfig generation.Config
	Language         locale.Language
	// AddressAs is how fixed replies address the user, e.g. 奶奶.
	AddressAs string

	Logger   *logging.Logger
	Observer Observer
	// Pick returns a number in [0, n); used to choose fallback stories.
	Pick func(n int) int
	Now  func() time.Time
}

// Assistant is the reading-assistance session. Each operation holds the
// session for its whole duration so turns from concurrent requests never
// interleave.
type Assistant struct {
	gen        generation.Generator
	dispatcher *persona.Dispatcher
	store      *ContextStore
	segmenter  Segmenter
	intent     *locale.ContinuationIntent
	ocr        *ocr.Service
	genConfig  generation.Config
	lang       locale.Language
	addressAs  string
	logger     *logging.Logger
	observer   Observer
	pick       func(n int) int
	now        func() time.Time

	turn chan struct{}
}

var _ Service = (*Assistant)(nil)

// NewAssistant validates cfg and fills defaults.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.Generator == nil {
		return nil, errors.New("conversation: generator is required")
	}
	dispatcher := cfg.Dispatcher
	if dispatcher == nil {
		dispatcher = persona.NewDispatcher(persona.DefaultCatalog())
	}
	store := cfg.Store
	if store == nil {
		store = NewContextStore(DefaultCapacity)
	}
	lang := cfg.Language
	if lang == "" {
		lang = locale.Default
	}
	segmenter := cfg.Segmenter
	if segmenter.threshold == 0 {
		segmenter = NewSegmenter(DefaultSegmentThreshold, locale.For(lang).ContinuePrompt)
	}
	intent := cfg.Intent
	if intent == nil {
		intent = locale.NewContinuationIntent()
	}
	genConfig := cfg.GenerationConfig
	if genConfig == (generation.Config{}) {
		genConfig = generation.DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	pick := cfg.Pick
	if pick == nil {
		pick = rand.IntN
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Assistant{
		gen:        cfg.Generator,
		dispatcher: dispatcher,
		store:      store,
		segmenter:  segmenter,
		intent:     intent,
		ocr:        cfg.OCR,
		genConfig:  genConfig,
		lang:       lang,
		addressAs:  strings.TrimSpace(cfg.AddressAs),
		logger:     logger.WithComponent("assistant"),
		observer:   cfg.Observer,
		pick:       pick,
		now:        now,
		turn:       make(chan struct{}, 1),
	}, nil
}

func (a *Assistant) acquire(ctx context.Context) error {
	select {
	case a.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Assistant) release() { <-a.turn }

func (a *Assistant) addressee() string {
	if a.addressAs != "" {
		return a.addressAs
	}
	return locale.For(a.lang).DefaultAddressee
}

func (a *Assistant) classify(text string) classifier.Analysis {
	analysis := classifier.Analyze(text)
	if a.observer != nil {
		a.observer.ObserveClassification(string(analysis.Category))
	}
	a.dispatcher.SelectForCategory(analysis.Category)
	return analysis
}

func (a *Assistant) reply(kind Kind, text string, style speech.Style) Reply {
	_, pending := a.store.Pending()
	return Reply{
		Text:       text,
		Kind:       kind,
		Persona:    refFor(a.dispatcher.Current()),
		HasPending: pending,
		Speech:     speech.For(a.lang, style),
		Timestamp:  a.now().UTC(),
	}
}

// deliver segments text, records it and builds the reply.
func (a *Assistant) deliver(kind Kind, text string, style speech.Style) Reply {
	seg := a.segmenter.Segment(text)
	if seg.Split {
		a.store.AppendAssistant(seg.First, Continued())
		a.store.AppendAssistant(seg.Second, Pending())
	} else {
		a.store.AppendAssistant(text)
	}
	r := a.reply(kind, seg.Display, style)
	r.Continued = seg.Split
	return r
}

func (a *Assistant) errorReply(err error) Reply {
	return a.reply(KindError, UserMessage(err, a.lang), speech.StyleChat)
}

// Chat answers a free-form message in the active persona, or delivers the
// pending continuation when the message asks for it.
func (a *Assistant) Chat(ctx context.Context, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyInput
	}
	if err := a.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer a.release()

	a.store.AppendUser(message)

	if a.intent.Matches(message) {
		if pending, ok := a.store.TakePending(); ok {
			a.store.AppendAssistant(pending.Text)
			a.logger.Info("continuation delivered", "turn_id", pending.ID)
			return a.reply(KindContinuation, pending.Text, speech.StyleChat), nil
		}
	}

	analysis := a.classify(message)
	current := a.dispatcher.Current()
	history := a.store.ComposeHistory(a.dispatcher.PromptFor(current.ID))

	text, err := a.gen.Generate(ctx, Contents(history), a.genConfig)
	if err != nil {
		a.logger.Warn("chat generation failed", "persona", current.ID, "error", err)
		r := a.chatFallback(current.ID, err)
		r.Category = analysis.Category
		return r, nil
	}

	r := a.deliver(replyKindFor(current.ID), text, speech.StyleChat)
	r.Category = analysis.Category
	return r, nil
}

func (a *Assistant) chatFallback(id persona.ID, err error) Reply {
	if generation.IsConfigError(err) {
		return a.errorReply(err)
	}
	if kind, text, ok := PersonaFallback(id, a.addressee()); ok {
		return a.reply(kind, text, speech.StyleChat)
	}
	var rlErr *generation.RateLimitError
	var netErr *generation.NetworkError
	if errors.As(err, &rlErr) || errors.As(err, &netErr) {
		return a.errorReply(err)
	}
	return a.reply(KindChat, companionFallback, speech.StyleChat)
}

// Explain handles a document: medical documents get a fixed referral,
// suspicious ones a fraud verdict, everything else a short story.
func (a *Assistant) Explain(ctx context.Context, text string, mode Mode) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyInput
	}
	if err := a.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer a.release()
	return a.explain(ctx, text, mode), nil
}

func (a *Assistant) explain(ctx context.Context, text string, mode Mode) Reply {
	a.store.SetDocument(text)
	analysis := a.classify(text)

	var r Reply
	switch {
	case mode == ModeFraud:
		r = a.fraudVerdict(text)
	case analysis.Category == classifier.CategoryMedical:
		notice := MedicalNotice(a.addressee())
		a.store.AppendAssistant(notice)
		r = a.reply(KindMedical, notice, speech.StyleChat)
	case analysis.Category == classifier.CategoryFraud:
		r = a.fraudVerdict(text)
	default:
		story, err := a.gen.Generate(ctx, []generation.Content{generation.UserText(BuildStoryPrompt(text, analysis))}, a.genConfig)
		if err != nil {
			a.logger.Warn("story generation failed, simplifying instead", "error", err)
			fallback := ExplainFallback(text, a.addressee())
			a.store.AppendAssistant(fallback)
			r = a.reply(KindGeneral, fallback, speech.StyleNarration)
			break
		}
		r = a.deliver(KindGeneral, story, speech.StyleNarration)
	}
	r.Category = analysis.Category
	return r
}

func (a *Assistant) fraudVerdict(text string) Reply {
	kind, verdict := CheckFraud(text, a.addressee())
	a.store.AppendAssistant(verdict)
	return a.reply(kind, verdict, speech.StyleChat)
}

// Narrate tells the document as a short story regardless of its category.
func (a *Assistant) Narrate(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyInput
	}
	if err := a.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer a.release()

	a.store.SetDocument(text)
	analysis := classifier.Analyze(text)
	if a.observer != nil {
		a.observer.ObserveClassification(string(analysis.Category))
	}

	story, err := a.gen.Generate(ctx, []generation.Content{generation.UserText(BuildStoryPrompt(text, analysis))}, a.genConfig)
	if err != nil {
		a.logger.Warn("narration failed", "error", err)
		r := a.errorReply(err)
		r.Category = analysis.Category
		return r, nil
	}
	r := a.deliver(KindGeneral, story, speech.StyleNarration)
	r.Category = analysis.Category
	return r, nil
}

// ReadImage recognizes a photo and explains or fraud-checks the text. An
// unreadable photo resolves to a fallback reply, never an error; only invalid
// uploads are rejected.
func (a *Assistant) ReadImage(ctx context.Context, image []byte, mode Mode, lang string) (Reply, error) {
	if a.ocr == nil {
		return Reply{}, errors.New("conversation: text recognition is not configured")
	}
	if err := ocr.ValidateImage(image); err != nil {
		return Reply{}, err
	}
	if err := a.acquire(ctx); err != nil {
		return Reply{}, err
	}
	defer a.release()

	text, err := a.ocr.Extract(ctx, image, lang)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, ctxErr
		}
		a.logger.Warn("ocr failed, using fallback", "mode", mode, "error", err)
		var r Reply
		switch {
		case errors.Is(err, ocr.ErrTimeout):
			r = a.storyFallback(ctx)
		case mode == ModeFraud:
			r = a.reply(KindFraudFallback, FraudFallback(a.addressee()), speech.StyleChat)
		default:
			r = a.storyFallback(ctx)
		}
		r.Notice = locale.For(a.lang).OCRFailed
		if errors.Is(err, ocr.ErrTimeout) {
			r.Notice = locale.For(a.lang).OCRTimeout
		}
		return r, nil
	}

	r := a.explain(ctx, text, mode)
	r.Recognized = text
	return r, nil
}

func (a *Assistant) storyFallback(ctx context.Context) Reply {
	prompt := RandomStoryPrompt(a.pick(len(randomStoryThemes)))
	story, err := a.gen.Generate(ctx, []generation.Content{generation.UserText(prompt)}, a.genConfig)
	if err != nil {
		a.logger.Warn("fallback story failed", "error", err)
		return a.reply(KindStoryFallback, unreadablePhoto, speech.StyleNarration)
	}
	greeting := a.addressAs
	if greeting == "" {
		greeting = "您好"
	}
	return a.reply(KindStoryFallback, StoryFallback(story, greeting), speech.StyleNarration)
}

// Persona returns the active persona.
func (a *Assistant) Persona() persona.Persona {
	return a.dispatcher.Current()
}

// PersonaHistory returns the switch audit log.
func (a *Assistant) PersonaHistory() []persona.SwitchEvent {
	return a.dispatcher.History()
}

// ResetPersona switches back to the default persona.
func (a *Assistant) ResetPersona() persona.Persona {
	a.dispatcher.ResetToDefault()
	return a.dispatcher.Current()
}

// Conversation returns the stored turns and document.
func (a *Assistant) Conversation() Snapshot {
	return Snapshot{
		Turns:    a.store.Turns(),
		Document: a.store.Document(),
		Capacity: a.store.Capacity(),
		Persona:  a.dispatcher.Current(),
	}
}

// ResetConversation clears the context. The active persona is kept.
func (a *Assistant) ResetConversation() {
	a.store.Reset()
}
