package telegram

import (
	"sync"

	"tradepost-ocr/api/internal/ocr"
)

var chatLang sync.Map // chatID -> ocr.Language

func setLang(chatID int64, l ocr.Language) { chatLang.Store(chatID, l) }

func getLang(chatID int64) ocr.Language {
	if v, ok := chatLang.Load(chatID); ok {
		if l, _ := v.(ocr.Language); l != "" {
			return l
		}
	}
	return ocr.LangEN
}
