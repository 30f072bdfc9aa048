package dialogue

import (
	"fmt"
	"skazkabot/session"
)

// Fixed labels for the gated steps. Keyboard rows are exported so the
// transport can render them without knowing the flow.

var ageLabelCodes = map[string]string{
	"1-2 года": "1",
	"3-5 лет":  "2",
	"6-8 лет":  "3",
}

var genderLabels = map[string]bool{
	"мальчик": true,
	"девочка": true,
}

const (
	LabelAudioVoice    = "🔊 Озвучить сказку"
	LabelAudioTextOnly = "📖 Только текст"
	LabelVoiceFemale   = "👩 Женский голос"
	LabelVoiceMale     = "👨 Мужской голос"
)

var voiceLabelTypes = map[string]session.VoiceType{
	LabelVoiceFemale: session.VoiceFemale,
	LabelVoiceMale:   session.VoiceMale,
}

var AgeKeyboardRows = [][]string{
	{"1-2 года", "3-5 лет"},
	{"6-8 лет"},
}

var GenreKeyboardRows = [][]string{
	{"волшебная сказка", "сказка о животных"},
	{"бытовая сказка", "сказка-притча"},
	{"страшная/готическая", "приключения"},
	{"детектив", "комедия"},
	{"драма", "поучительная история"},
	{"фантастика", "психологическая"},
}

var StyleKeyboardRows = [][]string{
	{"народный/фольклорный", "лирический/поэтический"},
	{"таинственный/загадочный", "уютный"},
	{"юмористический", "приключенческий"},
	{"эпический/героический", "темный/готический"},
	{"восточный", "скандинавский"},
}

var GenderKeyboardRows = [][]string{
	{"мальчик", "девочка"},
}

var AudioKeyboardRows = [][]string{
	{LabelAudioVoice, LabelAudioTextOnly},
}

var VoiceKeyboardRows = [][]string{
	{LabelVoiceFemale, LabelVoiceMale},
}

const greetingText = "<b><i>Привет, дорогой друг!</i></b>\n\n" +
	"Я твой персональный сочинитель сказок 📚, создам сказку по твоему предпочтению 🫶.\n\n" +
	"Для какого возраста будем писать? ✍️"

const restartText = "Напишите <b>/start</b>, чтобы начать создание сказки."

const genrePromptText = "<b><i>Отлично! Начало положено!</i></b>\n\n" +
	"Выбери жанр авторской сказки или напиши свой вариант (например: героическая история)"

const stylePromptText = "<b><i>Укажи в каком стиле будем писать сказку</i></b>🧸:\n\n" +
	"Или можешь придумать свой вариант 🤗"

const locationPromptText = "<b><i>Где будет происходить действие?</i></b> 🗺️\n\n" +
	"Например:\n" +
	"• сказочный лес\n• другая планета\n• дно океана\n" +
	"• пещера дружелюбного тролля и так далее...\n\n" +
	"<i>Придумай оригинальную локацию 🏔️🏕️🏝️ или напиши мне: <b>придумай сам</b></i>, я все сделаю"

const heroPromptText = "<b><i>Придумай имя главного героя</i></b> 🦸‍♂️\n\n" +
	"Например:\n" +
	"• котенок-плутишка\n• принцесса, которая не верила в магию\n" +
	"• вечно смеющийся мышонок\n• девочка Катя и так далее..."

const enemyPromptText = "<b><i>Теперь пора придумать злодея\n" +
	"с кем наш герой будет бороться\n" +
	"или препятствие, которое он будет преодолевать. 🌋</i></b>\n\n" +
	"Например: 'Дракон-лентяй' или 'высохшая река.'\n\n" +
	"Если хочешь, чтобы это сделал я, напиши: <b><i>придумай сам</i></b>"

const childNamePromptText = "<b><i>Как зовут ребенка, для которого пишем сказку? 👶</i></b>"

const genderPromptText = "<b><i>Укажи пол ребенка 👦👧</i></b>"

const generatingText = "<b><i>Отлично! Все данные собраны.\n🔮Генерирую сказку🔮</i></b>"

const audioChoicePromptText = "<b><i>Хочешь, я озвучу сказку? 🎧</i></b>"

const voiceChoicePromptText = "<b><i>Каким голосом озвучить сказку?</i></b>"

const textOnlyFarewellText = "<b><i>Сказка готова! Приятного чтения 📖</i></b>\n\n" +
	"Напиши /start, чтобы сочинить еще одну."

const audioFarewellText = "🎧 Приятного прослушивания!\n\nНапиши /start, чтобы сочинить еще одну сказку."

// Re-prompts for invalid input at gated steps.
const (
	ageRepromptText    = "Выберите вариант 1, 2 или 3"
	genderRepromptText = "Выберите: <b>мальчик</b> или <b>девочка</b>"
	audioRepromptText  = "Выберите один из вариантов на клавиатуре 🎧📖"
	voiceRepromptText  = "Выберите голос: женский или мужской"
)

// Notices per synthesis failure cause.
const (
	synthUnavailableText = "К сожалению, озвучивание сейчас недоступно 😔\n\nНо сказка уже у тебя — приятного чтения!"
	synthEmptyText       = "Не получилось озвучить: текст сказки пуст 😔"
	synthTransportText   = "Не удалось связаться с сервисом озвучивания 😔\n\nПопробуй создать сказку еще раз чуть позже."
	synthBackendText     = "Сервис озвучивания вернул ошибку 😔\n\nСказка в текстовом виде уже у тебя."
	synthTooLargeText    = "Аудиофайл получился слишком большим для отправки 😔\n\nСказка в текстовом виде уже у тебя."
)

// FallbackTale is the deterministic substitute used when story generation
// fails, populated from whatever answers are available.
func FallbackTale(answers map[string]string) string {
	get := func(key, fallback string) string {
		if v := answers[key]; v != "" {
			return v
		}
		return fallback
	}
	hero := get(session.AnswerHero, "храбрый герой")
	enemy := get(session.AnswerEnemy, "страшный лев")
	childName := get(session.AnswerChildName, "малыш")

	return fmt.Sprintf(`**Сказка про %s**

Жил был %s.
Однажды случилась беда:
%s напал на деревню.

Маленький %s решил помочь!
Он собрал всех зверей вместе и победил злодея!

**Мораль: дружба решает любые проблемы!**`, hero, hero, enemy, childName)
}
