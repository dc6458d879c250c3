package ocr

import "strings"

type Language string

const (
	LangKO Language = "ko"
	LangEN Language = "en"
	LangJA Language = "ja"
	LangZH Language = "zh"
)

var langHints = map[Language]string{
	LangKO: "한국어 게임 UI입니다. 아이템명을 한국어로 추출하세요.",
	LangEN: "English game UI. Extract item names in English.",
	LangJA: "日本語のゲームUIです。アイテム名を日本語で抽出してください。",
	LangZH: "中文游戏UI。请用中文提取物品名称。",
}

// NoItemsMessage is the error text the model returns when nothing is found.
const NoItemsMessage = "No tradeable items found"

const promptHead = `You are an OCR assistant for the game "Arknights: Endfield".
`

const promptTask = `

Extract ALL tradeable items visible in this trading post / shop screenshot.
For each item, extract:
- "name": the item name as shown in the UI
- "buyPrice": the purchase/cost price (number only, no currency symbols)
- "sellPrice": the sell price if visible (number only), or null if not shown

Return ONLY valid JSON, no markdown fences, no explanation:
{"items": [{"name": "...", "buyPrice": 123, "sellPrice": 456}, ...]}

If no items are found or the image is not a game screenshot, return:
{"items": [], "error": "` + NoItemsMessage + `"}`

// ParseLanguage maps a hint to a supported language; anything else is English.
func ParseLanguage(s string) Language {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := langHints[l]; ok {
		return l
	}
	return LangEN
}

// Prompt builds the full instruction text for a language hint.
func Prompt(lang string) string {
	return promptHead + langHints[ParseLanguage(lang)] + promptTask
}
