package conversation

import (
	"fmt"

	"github.com/wolfman30/vision-helper/internal/classifier"
)

var typePrompts = map[classifier.Category]string{
	classifier.CategoryBusinessCard:  "這是名片內容，請溫馨地介紹這位人士的背景和工作",
	classifier.CategoryLetter:        "這是信件內容，請溫暖地描述信中的情感和故事",
	classifier.CategoryBill:          "這是帳單內容，請輕鬆地說明生活中的點點滴滴",
	classifier.CategoryNews:          "這是新聞內容，請有趣地講述發生的事件",
	classifier.CategoryNovel:         "這是小說內容，請引人入勝地描述情節",
	classifier.CategoryAdvertisement: "這是廣告內容，請實用地介紹產品或服務",
	classifier.CategoryManual:        "這是說明書內容，請清楚地解釋使用方法",
	classifier.CategoryOfficial:      "這是公文內容，請正式但親切地說明要點",
	classifier.CategoryFoodLabel:     "這是食品說明，請關心地提醒保存和營養資訊",
	classifier.CategoryGeneral:       "這是一般內容，請溫暖地分享其中的故事",
}

func emotionalTone(e classifier.Emotion) string {
	switch e {
	case classifier.EmotionPositive:
		return "正面溫暖"
	case classifier.EmotionNegative:
		return "安慰鼓勵"
	default:
		return "生活趣味"
	}
}

// BuildStoryPrompt turns recognized text into a storytelling instruction
// tuned to its category, tone and complexity.
func BuildStoryPrompt(text string, a classifier.Analysis) string {
	typePrompt, ok := typePrompts[a.Category]
	if !ok {
		typePrompt = typePrompts[classifier.CategoryGeneral]
	}
	return fmt.Sprintf(`你是「小安」，一位溫柔且有耐心的晚輩。你現在要幫忙將 OCR 識別的文字轉化為溫馨的故事。

內容類型：%s
情感基調：%s
建議長度：%s

OCR 識別文字：
%s

要求：
1. 以「小安」的溫柔晚輩語調說話
2. 將複雜內容簡化為1-2個關鍵短句
3. 適度表達內容中的情感
4. 適合老年使用者理解，使用簡單詞彙
5. 故事片段以開放性問題結束，引發分享個人經驗
6. 使用繁體中文

請直接提供故事內容，不需要其他說明。`, typePrompt, emotionalTone(a.Emotion), classifier.LengthGuide(a.Complexity), text)
}

var randomStoryThemes = []string{
	"生成一個溫馨的小故事，讓老人家感到溫暖",
	"說一個關於家庭溫暖的簡短故事",
	"分享一個讓人會心一笑的生活小故事",
	"講一個關於友情或親情的暖心故事",
}

// RandomStoryPrompt asks for a short warm story on theme i (modulo the
// number of themes).
func RandomStoryPrompt(i int) string {
	if i < 0 {
		i = -i
	}
	theme := randomStoryThemes[i%len(randomStoryThemes)]
	return fmt.Sprintf("你是「小安」，一位溫柔的晚輩。%s，語調要親切溫馨，控制在80字以內。", theme)
}
