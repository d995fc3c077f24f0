package classifier

import (
	"strings"
	"unicode/utf8"
)

// Category tags the kind of document or message a text looks like.
type Category string

const (
	CategoryMedical       Category = "medical"
	CategoryFraud         Category = "fraud"
	CategoryBusinessCard  Category = "business_card"
	CategoryLetter        Category = "letter"
	CategoryBill          Category = "bill"
	CategoryNews          Category = "news"
	CategoryNovel         Category = "novel"
	CategoryAdvertisement Category = "advertisement"
	CategoryManual        Category = "manual"
	CategoryOfficial      Category = "official"
	CategoryFoodLabel     Category = "food_label"
	CategoryGeneral       Category = "general"
)

// novelLengthThreshold marks long running text as narrative even without
// chapter keywords.
const novelLengthThreshold = 500

type rule struct {
	category Category
	keywords []string
	// minRunes > 0 also matches any text longer than minRunes.
	minRunes int
}

// rules are evaluated in priority order; the first hit wins.
var rules = []rule{
	{
		category: CategoryMedical,
		keywords: []string{
			"藥", "醫", "診所", "處方", "劑量", "服用", "治療", "症狀", "病", "診斷", "藥物", "醫院", "健康", "藥品", "檢查",
			"prescription", "dosage", "pharmacy", "clinic", "hospital", "diagnosis", "medicine", "tablet",
		},
	},
	{
		category: CategoryFraud,
		keywords: []string{
			"緊急", "匯款", "轉帳", "中獎", "免費", "限時", "點擊連結", "立即", "優惠", "贈送", "恭喜", "獲得", "抽獎", "急需",
			"wire transfer", "you have won", "click the link", "act now", "gift card", "lottery", "urgent",
		},
	},
	{
		category: CategoryBusinessCard,
		keywords: []string{"先生", "小姐", "經理", "公司", "電話", "手機", "business card", "tel:", "mobile:"},
	},
	{
		category: CategoryLetter,
		keywords: []string{"親愛的", "敬啟", "敬上", "來信", "收信人", "寄信人", "dear ", "sincerely", "yours truly"},
	},
	{
		category: CategoryBill,
		keywords: []string{"帳單", "費用", "金額", "總計", "付款", "到期", "invoice", "amount due", "total due", "billing"},
	},
	{
		category: CategoryNews,
		keywords: []string{"新聞", "報導", "記者", "發生", "事件", "報紙", "reporter", "breaking news", "newspaper"},
	},
	{
		category: CategoryNovel,
		keywords: []string{"章", "節", "故事", "chapter", "once upon a time"},
		minRunes: novelLengthThreshold,
	},
	{
		category: CategoryAdvertisement,
		keywords: []string{"特價", "促銷", "活動", "廣告", "on sale", "discount", "promotion"},
	},
	{
		category: CategoryManual,
		keywords: []string{"使用說明", "操作方法", "步驟", "注意事項", "說明", "instructions", "user manual", "step 1"},
	},
	{
		category: CategoryOfficial,
		keywords: []string{"公文", "通知", "公告", "文件", "正式", "official notice", "notice of", "ministry"},
	},
	{
		category: CategoryFoodLabel,
		keywords: []string{"營養", "成分", "保存", "食品", "過期", "ingredients", "nutrition facts", "best before", "expiry"},
	},
}

// Classify returns the highest-priority category whose keyword set matches
// text, or CategoryGeneral. ASCII letters are compared case-insensitively;
// every other script matches exactly.
func Classify(text string) Category {
	folded := foldASCII(text)
	runes := utf8.RuneCountInString(text)
	for _, r := range rules {
		if r.minRunes > 0 && runes > r.minRunes {
			return r.category
		}
		for _, kw := range r.keywords {
			if strings.Contains(folded, foldASCII(kw)) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}

// Categories lists every category in priority order.
func Categories() []Category {
	out := make([]Category, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, CategoryGeneral)
}

// foldASCII lower-cases A-Z and leaves every other rune untouched, so that
// scripts with their own case rules are matched verbatim.
func foldASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
