package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/vision-helper/internal/classifier"
	"github.com/wolfman30/vision-helper/internal/persona"
)

// Kind tags a Reply so clients can style it.
type Kind string

const (
	KindChat          Kind = "chat"
	KindMedical       Kind = "medical"
	KindFraudWarning  Kind = "fraud_warning"
	KindFraudSafe     Kind = "fraud_safe"
	KindGeneral       Kind = "general"
	KindStoryFallback Kind = "story_fallback"
	KindFraudFallback Kind = "fraud_fallback"
	KindContinuation  Kind = "continuation"
	KindError         Kind = "error"
)

const simplifyLimit = 45

var fraudCheckKeywords = []string{
	"緊急", "匯款", "轉帳", "中獎", "免費", "限時", "點擊連結",
	"urgent", "wire transfer", "you have won", "click the link",
}

// IsSuspicious reports whether text carries one of the classic scam markers.
func IsSuspicious(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range fraudCheckKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// CheckFraud returns the fixed fraud verdict for a document.
func CheckFraud(text, addressee string) (Kind, string) {
	if IsSuspicious(text) {
		return KindFraudWarning, fmt.Sprintf("%s，這封信看起來有點可疑喔。通常政府機關或銀行不會用這種方式通知您。如果您有任何疑問，請直接撥打官方電話或165反詐騙專線確認。", addressee)
	}
	return KindFraudSafe, fmt.Sprintf("%s，這份文件看起來是正常的。不過如果您還是有疑慮，建議您可以詢問家人或撥打相關機構的官方電話確認。", addressee)
}

// MedicalNotice is the fixed reply for medical documents.
func MedicalNotice(addressee string) string {
	return fmt.Sprintf("%s，這是一份醫療相關的文件。我看到裡面提到了醫療資訊，但我不能提供醫療建議。如果您對用藥或治療有疑問，建議您直接詢問醫師或藥師。", addressee)
}

// SimplifyText reduces a document to its first sentence, truncated to 45
// characters.
func SimplifyText(text string) string {
	sentences := classifier.SplitSentences(text)
	if len(sentences) == 0 {
		return "文件內容比較複雜，讓我為您整理一下。"
	}
	first := sentences[0]
	if utf8.RuneCountInString(first) > simplifyLimit {
		return string([]rune(first)[:simplifyLimit]) + "..."
	}
	return first + "。"
}

// ExplainFallback is used when story generation for a document fails.
func ExplainFallback(text, addressee string) string {
	return fmt.Sprintf("%s，讓我為您說明這份文件。%s", addressee, SimplifyText(text))
}

// PersonaFallback is the fixed reply a persona gives when generation fails.
// The companion has no fixed reply and reports false.
func PersonaFallback(id persona.ID, addressee string) (Kind, string, bool) {
	switch id {
	case persona.Medical:
		return KindMedical, fmt.Sprintf("%s，關於醫療方面的問題，建議您直接詢問醫師或藥師，他們會給您最專業的指導。", addressee), true
	case persona.Security:
		return KindFraudWarning, fmt.Sprintf("%s，如果您懷疑收到詐騙訊息，建議您撥打165反詐騙專線詢問，或直接聯絡相關機構確認。", addressee), true
	default:
		return "", "", false
	}
}

// FraudFallback is the advice given in fraud mode when the photo is unreadable.
func FraudFallback(addressee string) string {
	return fmt.Sprintf("%s，雖然小安看不清楚照片中的文字，但如果您懷疑這是詐騙訊息，建議您：1. 不要輕易點擊任何連結 2. 不要提供個人資訊 3. 可以撥打165反詐騙專線詢問 4. 如果是銀行或政府機關訊息，請直接撥打官方電話確認。", addressee)
}

const (
	photoTip          = "如果您想讓小安讀取文字內容，建議您拍攝時光線充足，文字清晰一些喔！"
	unreadablePhoto   = "抱歉，我看不太清楚這張圖片的文字。要不要重新拍一張，或是我們直接聊聊天？"
	companionFallback = "我在想要怎麼回應你...要不要重新說一遍？"
)

// StoryFallback wraps a generated warm story with the photo tip.
func StoryFallback(story, addressee string) string {
	return fmt.Sprintf("%s，%s %s", addressee, strings.TrimSpace(story), photoTip)
}

// replyKindFor maps the active persona to the kind of its chat replies.
func replyKindFor(id persona.ID) Kind {
	switch id {
	case persona.Medical:
		return KindMedical
	case persona.Security:
		return KindFraudWarning
	default:
		return KindChat
	}
}
