package deepseekapi

import (
	"fmt"
	"skazkabot/session"
)

const systemPrompt = "Ты детский писатель, специализирующийся на создании добрых поучительных сказок."

// AgeGroupNames maps the stored age-group code back to its display label.
var AgeGroupNames = map[string]string{
	"1": "1-2 года",
	"2": "3-5 лет",
	"3": "6-8 лет",
}

// Target length and structure requirements per age group.
var ageInstructions = map[string]string{
	"1": `Для возраста 1-2 года создай очень простую сказку в стиле 'Колобок', 'Курочка Ряба', 'Репка' и других похожих русских сказок.
Особые требования:
- Простой сюжет с минимумом персонажей
- Яркие, понятные образы
- Обязательный happy end
- Добавь элементы, которые можно повторять (как 'я от дедушки ушел' в Колобке)
- Длина сказки 1500 символов. Обязательно соблюдай эту длину!`,
	"2": `Для возраста 3-5 лет:
- Простые, но более развернутые предложения
- Четкий сюжет с завязкой, развитием и развязкой
- Яркие персонажи с понятными характеристиками
- Элементы повтора для запоминания
- Добрый юмор
- Длина сказки 2500 символов. Обязательно соблюдай эту длину!`,
	"3": `Для возраста 6-8 лет:
- Более сложный сюжет с неожиданными поворотами
- Развернутые описания персонажей и мест
- Может содержать элементы напряжения и их разрешения
- Поучительный компонент
- Длина сказки 3500 символов. Обязательно соблюдай эту длину!`,
}

func answerOrDefault(answers map[string]string, key, fallback string) string {
	if v := answers[key]; v != "" {
		return v
	}
	return fallback
}

// ComposePrompt embeds every collected answer into the user prompt sent to
// the completion API.
func ComposePrompt(answers map[string]string) string {
	age := answers[session.AnswerAge]
	ageName, ok := AgeGroupNames[age]
	if !ok {
		ageName = age
	}

	return fmt.Sprintf(`
Создай детскую сказку на русском языке, идеально подходящую для ребенка %s.
%s
Жанр - %s.
Стиль сказки - %s.
Место действия - %s.
Главный герой - %s.
Противник или проблема - %s.
Вставь имя ребенка %s в историю.
Пол ребенка - %s.
Сказка должна быть поучительной, доброй и интересной.
В заголовке укажи название сказки.
ВАЖНО: длина сказки не должна превышать 4000 символов!
ВАЖНО: Используй только кириллицу (русские буквы)!`,
		ageName,
		ageInstructions[age],
		answerOrDefault(answers, session.AnswerGenre, "добрый"),
		answerOrDefault(answers, session.AnswerStyle, "приключения"),
		answerOrDefault(answers, session.AnswerLocation, "сказочный лес"),
		answerOrDefault(answers, session.AnswerHero, "добрый медвежонок"),
		answerOrDefault(answers, session.AnswerEnemy, "страшный лев"),
		answerOrDefault(answers, session.AnswerChildName, "малыш"),
		answers[session.AnswerGender],
	)
}
