package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, TraditionalChinese, Parse(""))
	assert.Equal(t, TraditionalChinese, Parse("zh-TW"))
	assert.Equal(t, Japanese, Parse("ja-JP"))
	assert.Equal(t, English, Parse("EN"))
	assert.Equal(t, TraditionalChinese, Parse("fr"))
}

func TestForFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "請問是否要繼續？", For(Language("xx")).ContinuePrompt)
	assert.Equal(t, "Would you like me to continue?", For(English).ContinuePrompt)
}

func TestContinuationIntent(t *testing.T) {
	intent := NewContinuationIntent("再來")

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"chinese literal", "請繼續", true},
		{"chinese with punctuation", " 請繼續！ ", true},
		{"japanese", "続行", true},
		{"english mixed case", "Continue.", true},
		{"configured extra", "再來", true},
		{"phrase inside question", "請繼續說明這張帳單的金額是多少", false},
		{"unrelated", "這是什麼藥", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, intent.Matches(tt.text))
		})
	}
}

func TestNilIntentNeverMatches(t *testing.T) {
	var intent *ContinuationIntent
	assert.False(t, intent.Matches("請繼續"))
}
