package telegram

import (
	"skazkabot/dialogue"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// keyboardMarkup renders a dialogue keyboard id into the Telegram reply
// markup. The label sets live in the dialogue package next to the states
// that validate them.
func keyboardMarkup(keyboard dialogue.Keyboard) interface{} {
	switch keyboard {
	case dialogue.KeyboardRemove:
		return tgbotapi.NewRemoveKeyboard(true)
	case dialogue.KeyboardAge:
		return replyKeyboard(dialogue.AgeKeyboardRows)
	case dialogue.KeyboardGenre:
		return replyKeyboard(dialogue.GenreKeyboardRows)
	case dialogue.KeyboardStyle:
		return replyKeyboard(dialogue.StyleKeyboardRows)
	case dialogue.KeyboardGender:
		return replyKeyboard(dialogue.GenderKeyboardRows)
	case dialogue.KeyboardAudioChoice:
		return replyKeyboard(dialogue.AudioKeyboardRows)
	case dialogue.KeyboardVoiceChoice:
		return replyKeyboard(dialogue.VoiceKeyboardRows)
	}
	return nil
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboardRows = append(keyboardRows, buttons)
	}

	markup := tgbotapi.NewReplyKeyboard(keyboardRows...)
	markup.ResizeKeyboard = true
	return markup
}
