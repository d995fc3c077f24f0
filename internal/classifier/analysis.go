package classifier

import (
	"strings"
	"unicode"
)

// Emotion is the overall tone of a text.
type Emotion string

const (
	EmotionPositive Emotion = "positive"
	EmotionNegative Emotion = "negative"
	EmotionNeutral  Emotion = "neutral"
)

// Complexity buckets the average sentence length of a text.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

var (
	positiveWords = []string{"快樂", "幸福", "喜悅", "溫暖", "愛", "感謝", "成功", "健康", "美好", "幸運", "happy", "thank", "love", "lucky"}
	negativeWords = []string{"難過", "痛苦", "悲傷", "憂鬱", "生病", "困難", "煩惱", "壓力", "擔心", "疲憊", "sad", "pain", "worried", "tired"}
)

// Analysis bundles everything derived from a text before prompting.
type Analysis struct {
	Category   Category   `json:"category"`
	Emotion    Emotion    `json:"emotion"`
	Complexity Complexity `json:"complexity"`
}

// Analyze classifies text and measures its tone and complexity.
func Analyze(text string) Analysis {
	return Analysis{
		Category:   Classify(text),
		Emotion:    AnalyzeEmotion(text),
		Complexity: AnalyzeComplexity(text),
	}
}

// AnalyzeEmotion compares how many distinct positive and negative words occur.
func AnalyzeEmotion(text string) Emotion {
	folded := foldASCII(text)
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(folded, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(folded, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return EmotionPositive
	case neg > pos:
		return EmotionNegative
	default:
		return EmotionNeutral
	}
}

// AnalyzeComplexity buckets the average sentence length. Length is counted in
// words for Latin text and in characters for CJK text, which has no spaces.
func AnalyzeComplexity(text string) Complexity {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ComplexitySimple
	}
	units := 0
	for _, s := range sentences {
		units += lengthUnits(s)
	}
	avg := float64(units) / float64(len(sentences))
	switch {
	case avg < 10:
		return ComplexitySimple
	case avg < 20:
		return ComplexityMedium
	default:
		return ComplexityComplex
	}
}

// LengthGuide suggests how long a narration of text of the given complexity
// should be.
func LengthGuide(c Complexity) string {
	switch c {
	case ComplexityMedium:
		return "50-100字"
	case ComplexityComplex:
		return "100-200字"
	default:
		return "20-50字"
	}
}

// SplitSentences splits on Chinese and Latin sentence terminators and drops
// blank pieces.
func SplitSentences(text string) []string {
	return splitSentences(text)
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '。', '！', '？', '!', '?', '.':
			return true
		}
		return false
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lengthUnits(sentence string) int {
	units := 0
	inWord := false
	for _, r := range sentence {
		switch {
		case isCJK(r):
			units++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				units++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return units
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}
