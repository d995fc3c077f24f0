package conversation

import "unicode/utf8"

// DefaultSegmentThreshold is the longest reply, in characters, delivered whole.
const DefaultSegmentThreshold = 100

// Segment is a reply split for turn-taking.
type Segment struct {
	First string
	// Second is the held-back remainder; empty when Split is false.
	Second string
	// Display is what the user sees now: First, plus the continuation prompt
	// when the reply was split.
	Display string
	Split   bool
}

// Segmenter halves long replies.
type Segmenter struct {
	threshold int
	prompt    string
}

// NewSegmenter creates a segmenter. A threshold below one selects
// DefaultSegmentThreshold.
func NewSegmenter(threshold int, continuePrompt string) Segmenter {
	if threshold < 1 {
		threshold = DefaultSegmentThreshold
	}
	return Segmenter{threshold: threshold, prompt: continuePrompt}
}

// Segment returns text whole when it has at most threshold characters and
// otherwise splits it at the middle character.
func (s Segmenter) Segment(text string) Segment {
	n := utf8.RuneCountInString(text)
	if n <= s.threshold {
		return Segment{First: text, Display: text}
	}
	runes := []rune(text)
	mid := n / 2
	first := string(runes[:mid])
	display := first
	if s.prompt != "" {
		display = first + "\n\n" + s.prompt
	}
	return Segment{
		First:   first,
		Second:  string(runes[mid:]),
		Display: display,
		Split:   true,
	}
}

// Threshold reports the split threshold.
func (s Segmenter) Threshold() int { return s.threshold }
