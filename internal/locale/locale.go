// Package locale holds the user-facing strings and continuation phrases for
// each supported interface language.
package locale

import (
	"strings"
	"unicode"
)

// Language is a BCP 47 tag for one of the supported interface languages.
type Language string

const (
	TraditionalChinese Language = "zh-TW"
	Japanese           Language = "ja"
	English            Language = "en"
)

// Default is used when a request names no language or an unknown one.
const Default = TraditionalChinese

// Messages is the string table for a language.
type Messages struct {
	ContinuePrompt   string
	ContinuePhrases  []string
	Misconfigured    string
	RateLimited      string
	NetworkProblem   string
	GenericError     string
	OCRTimeout       string
	OCRFailed        string
	EmptyInput       string
	DefaultAddressee string
}

var tables = map[Language]Messages{
	TraditionalChinese: {
		ContinuePrompt:   "請問是否要繼續？",
		ContinuePhrases:  []string{"請繼續", "繼續", "繼續說", "說下去", "好"},
		Misconfigured:    "系統配置有誤，請聯繫管理員。",
		RateLimited:      "現在使用的人比較多，請稍後再試。",
		NetworkProblem:   "網路連線不太穩定，請檢查網路連線後再試。",
		GenericError:     "抱歉，發生了錯誤。請稍後再試。",
		OCRTimeout:       "識別時間超過 180 秒，為您準備其他內容...",
		OCRFailed:        "文字識別失敗，為您準備其他內容...",
		EmptyInput:       "請輸入您想問的問題",
		DefaultAddressee: "您",
	},
	Japanese: {
		ContinuePrompt:   "続けましょうか？",
		ContinuePhrases:  []string{"続行", "続けて", "続きを", "はい"},
		Misconfigured:    "システムの設定に問題があります。管理者に連絡してください。",
		RateLimited:      "混み合っています。しばらくしてから再試行してください。",
		NetworkProblem:   "ネットワーク接続を確認して再試行してください。",
		GenericError:     "エラーが発生しました。再試行してください",
		OCRTimeout:       "認識に180秒以上かかりました。別の内容をご用意します...",
		OCRFailed:        "文字を認識できませんでした。別の内容をご用意します...",
		EmptyInput:       "質問を入力してください",
		DefaultAddressee: "あなた",
	},
	English: {
		ContinuePrompt:   "Would you like me to continue?",
		ContinuePhrases:  []string{"continue", "go on", "keep going", "yes please"},
		Misconfigured:    "The system is misconfigured. Please contact the administrator.",
		RateLimited:      "The service is busy right now. Please try again shortly.",
		NetworkProblem:   "The network connection looks unstable. Please try again.",
		GenericError:     "An error occurred. Please try again",
		OCRTimeout:       "Recognition took longer than 180 seconds, preparing something else...",
		OCRFailed:        "Text recognition failed, preparing something else...",
		EmptyInput:       "Please type your question",
		DefaultAddressee: "you",
	},
}

// Parse normalizes a language tag, falling back to Default.
func Parse(tag string) Language {
	tag = strings.TrimSpace(tag)
	switch {
	case tag == "":
		return Default
	case strings.EqualFold(tag, "ja") || strings.HasPrefix(strings.ToLower(tag), "ja-"):
		return Japanese
	case strings.EqualFold(tag, "en") || strings.HasPrefix(strings.ToLower(tag), "en-"):
		return English
	default:
		return TraditionalChinese
	}
}

// For returns the string table for lang.
func For(lang Language) Messages {
	if m, ok := tables[lang]; ok {
		return m
	}
	return tables[Default]
}

// Supported lists the languages with a string table.
func Supported() []Language {
	return []Language{TraditionalChinese, Japanese, English}
}

// ContinuationIntent recognizes a user's request to hear the rest of a
// segmented reply. Phrases of every supported language are accepted regardless
// of the active one. The whole utterance must be a phrase; surrounding space,
// trailing punctuation and ASCII case are ignored.
type ContinuationIntent struct {
	phrases map[string]struct{}
}

// NewContinuationIntent builds an intent from the built-in phrases plus extra.
func NewContinuationIntent(extra ...string) *ContinuationIntent {
	ci := &ContinuationIntent{phrases: make(map[string]struct{})}
	for _, lang := range Supported() {
		for _, p := range For(lang).ContinuePhrases {
			ci.add(p)
		}
	}
	for _, p := range extra {
		ci.add(p)
	}
	return ci
}

func (ci *ContinuationIntent) add(phrase string) {
	if n := normalizePhrase(phrase); n != "" {
		ci.phrases[n] = struct{}{}
	}
}

// Matches reports whether text asks for the pending continuation.
func (ci *ContinuationIntent) Matches(text string) bool {
	if ci == nil {
		return false
	}
	_, ok := ci.phrases[normalizePhrase(text)]
	return ok
}

func normalizePhrase(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || r == '～' || r == '~'
	})
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
