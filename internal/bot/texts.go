package bot

import (
	"fmt"
	"strings"

	"github.com/YulsKumanikina/eco-ekb-bot/internal/config"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/data"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/gamification"
	"github.com/YulsKumanikina/eco-ekb-bot/internal/storage"
)

// User-facing texts.
const (
	textWelcome = "♻️ Привет! Я ваш эко-помощник.\n\n" +
		"Чтобы узнать обо всех возможностях, отправьте команду /help или просто напишите «помощь».\n\n" +
		"Используйте кнопки меню ниже или задайте свой вопрос!"
	textApology          = "Ой, что-то пошло не так... Попробуйте переформулировать запрос или воспользуйтесь кнопками меню."
	textStale            = "Данные устарели. Сделайте новый запрос."
	textRecycledTwice    = "Вы уже сообщали о сдаче вторсырья сегодня. Спасибо! 😉"
	textQuizTwice        = "Вы уже отвечали на викторину сегодня. Новый вопрос будет завтра!"
	textQuizFailed       = "Не удалось создать вопрос для викторины. Попробуйте, пожалуйста, позже."
	textQuizWrong        = "В этот раз неверно, но не переживайте! В следующий раз обязательно получится. 👍"
	textLeaderboardEmpty = "Пока что у нас нет лидеров в этом квартале. Станьте первым!"
	textChooseChallenge  = "Выберите челлендж:"
	textKeepChallenge    = "Отлично! Продолжаем! 💪"
	textNoTips           = "Извините, у меня закончились советы."
	textFindPrompt       = "Какой вид вторсырья и в каком городе сдать?\n\nНапример: Батарейки в Кургане"
	textQuestionPrompt   = "Слушаю ваш вопрос о переработке отходов!"
	textVague            = "Привет! Кажется, твой ответ неполный. Задай, пожалуйста, полноценный вопрос или воспользуйся кнопками меню."
	textSubscribed       = "Отлично! Вы подписались на рассылку."
	textUnsubscribed     = "Вы отписались от рассылки."
	textWrapped          = "Это все варианты. Показываю с начала."
	textLLMUnavailable   = "Извините, сейчас я не могу ответить на этот вопрос. Попробуйте позже или воспользуйтесь кнопками меню."
	textLLMFailed        = "Извините, произошла ошибка."
	textLLMRateLimited   = "⏳ Слишком много вопросов подряд. Попробуйте через несколько минут или воспользуйтесь кнопками меню."
	textUserRateLimited  = "⏳ Слишком много сообщений, пожалуйста, подождите немного."

	labelMore          = "🔄 Показать другие варианты"
	labelSubscribe     = "Подписаться на советы"
	labelUnsubscribe   = "Отписаться от советов"
	labelAccept        = "✅ Принять!"
	labelBack          = "⬅️ Назад"
	labelCancelAndPick = "Отказаться и выбрать новый"
	labelKeep          = "Нет, я продолжаю!"
	labelAddBot        = "Добавить бота"
)

var leaderboardMedals = []string{"🥇", "🥈", "🥉", "4️⃣", "5️⃣"}

func helpText(p config.Points) string {
	return fmt.Sprintf(`Краткая инструкция: Как пользоваться Эко-Помощником ♻️

Привет! Я ваш личный гид в мире экологии и переработки. Моя цель — помочь вам сделать полезные привычки простыми и интересными. Вместе мы сможем сделать нашу планету чище!

Что я умею?

📍 Находить пункты приема вторсырья
Просто напишите мне, что и где вы хотите сдать. Я пойму даже с опечатками!
Примеры:
Куда сдать батарейки?
Стекло в Кургане

🧠 Отвечать на вопросы об экологии
Спрашивайте что угодно о переработке, сортировке или экологичном образе жизни.
Примеры:
Как подготовить пластик к сдаче?
Почему нельзя выбрасывать лампочки?
Что такое zero waste?

💪 Предлагать Эко-Челленджи
Хотите выработать полезную привычку? Нажмите кнопку «Эко-челлендж 💪» и выберите задание на несколько дней. За выполнение — особые награды!

💡 Давать полезные советы и факты
Нажмите «Совет дня 💡», чтобы узнать что-то новое, или «Эко-викторина 🧠», чтобы проверить свои знания и заработать очки!

✨ Ваша Эко-Активность: Как заработать баллы?

За каждое полезное действие вы получаете Эко-Очки. Они повышают ваш уровень, открывают достижения и помогают соревноваться с другими в Таблице Лидеров 🏆!

Вот за что начисляются баллы:
• +%d очков — за успешное завершение Эко-Челленджа.
• +%d очков — за каждого приглашенного друга (кнопка «Пригласить друга 🤝»).
• +%d очков — за получение нового достижения.
• +%d очков — за ежедневный отчет о сдаче вторсырья (кнопка «Я сдал вторсырье! ✅»).
• +%d очков — за каждый правильный ответ в Эко-Викторине.
• +%d очко — за получение «Совета дня».

Ваш прогресс всегда можно посмотреть, нажав кнопку «Мой профиль 👤».

Готовы начать? Просто задайте свой первый вопрос или воспользуйтесь кнопками меню! Ваш вклад очень важен!`,
		p.Challenge, p.Invite, p.Achievement, p.Recycle, p.Quiz, p.Tip)
}

func profileText(v *gamification.ProfileView) string {
	toNext := "МАКСИМУМ"
	if v.NextLevel != nil {
		toNext = fmt.Sprint(v.PointsToNext)
	}
	lines := []string{
		"👤 Ваш Эко-Профиль",
		fmt.Sprintf("🏆 Уровень: %d - %s", v.Level.Level, v.Level.Name),
		fmt.Sprintf("✨ Всего очков: %d", v.Profile.TotalPoints),
		fmt.Sprintf("🌿 Очки в этом квартале: %d", v.Profile.QuarterlyPoints),
		fmt.Sprintf("🎯 До следующего уровня: %s очков", toNext),
	}
	if len(v.Achievements) > 0 {
		lines = append(lines, "\n🏅 Ваши достижения:")
		for _, a := range v.Achievements {
			lines = append(lines, "- "+a.Name)
		}
	}
	return strings.Join(lines, "\n")
}

func leaderboardText(entries []storage.LeaderboardEntry) string {
	if len(entries) == 0 {
		return textLeaderboardEmpty
	}
	lines := []string{"🏆 Таблица Лидеров (текущий квартал) 🏆", ""}
	for i, e := range entries {
		medal := fmt.Sprintf("%d.", i+1)
		if i < len(leaderboardMedals) {
			medal = leaderboardMedals[i]
		}
		name := e.DisplayName
		if name == "" {
			name = "Герой"
		}
		lines = append(lines, fmt.Sprintf("%s %s - %d очков", medal, name, e.QuarterlyPoints))
	}
	return strings.Join(lines, "\n")
}

func inviteText(userID string, p config.Points, threshold int) string {
	return fmt.Sprintf("🤝 Пригласите друга и получите бонус!\n\n"+
		"Пусть друг добавит бота и отправит ему этот код. "+
		"Когда он наберет свои первые %d очков, вы получите %d Эко-Очков!\n\n"+
		"Ваш код:\n/start ref_%s", threshold, p.Invite, userID)
}

func activeChallengeText(title string, day, duration int) string {
	return fmt.Sprintf("Вы уже участвуете в челлендже:\n\n%s\nДень %d из %d.\n\nХотите отказаться и выбрать новый?",
		title, day, duration)
}

func challengeDetailsText(ch config.Challenge) string {
	return fmt.Sprintf("%s\n\nДлительность: %d дней. Принять вызов?", ch.Description, ch.DurationDays)
}

func tipText(tip string) string {
	return "💡 Случайный совет:\n\n" + tip
}

// DailyTipText is the broadcast form of a tip.
func DailyTipText(tip string) string {
	return "💡 Эко-совет дня:\n\n" + tip
}

func contextSearchText(keyword string) string {
	return fmt.Sprintf("В каком городе найти пункты для %s?", keyword)
}

func fallbackPointText(city string, fp config.FallbackPoint) string {
	return fmt.Sprintf("😔 К сожалению, я не нашел специализированных пунктов.\n\n"+
		"Но в городе %s есть универсальный вариант:\n\n"+
		"📍 %s\n   Адрес: %s\n   Телефон: %s\n\n⚠️ Важно: %s",
		city, fp.Name, fp.Address, orUnknown(fp.Phone), fp.Note)
}

func notFoundText(material, city string) string {
	return fmt.Sprintf("К сожалению, я не нашел пунктов приема для '%s' в городе %s.", material, city)
}

func notFoundAnywhereText(material string) string {
	return fmt.Sprintf("К сожалению, подходящих пунктов для '%s' не нашлось.", material)
}

func pointsText(header string, points []data.RecyclingPoint) string {
	parts := []string{header}
	for i, p := range points {
		name := p.Name
		if name == "" {
			name = "Без названия"
		}
		address := p.Address
		if address == "" {
			address = "Адрес не указан"
		}
		hours := p.WorkHours
		if hours == "" {
			hours = "Время работы не указано"
		}
		parts = append(parts, fmt.Sprintf("📍 %d. %s\n   Адрес: %s\n   Время работы: %s", i+1, name, address, hours))
	}
	return strings.Join(parts, "\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "не указан"
	}
	return s
}
