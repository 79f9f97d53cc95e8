package genai

import (
	"fmt"
	"strings"
)

const intentSystemPrompt = "Твоя задача - определить намерение пользователя. Ответь ОДНИМ словом. " +
	"1. Если пользователь хочет найти место, куда что-то сдать, или спрашивает адрес - ответь SEARCH. " +
	"2. Если он спрашивает о твоих возможностях, просит помощи ('помоги', 'что ты умеешь') или здоровается - ответь HELP. " +
	"3. Если речь о челленджах, вызовах, заданиях - ответь CHALLENGE. " +
	"4. Во всех остальных случаях (общие вопросы об экологии) - ответь GENERAL."

// OffTopicReply is what the expert persona answers outside its domain.
const OffTopicReply = "К сожалению, я могу обсуждать только вопросы, связанные с экологией."

const answerSystemPrompt = "Твоя роль - дружелюбный и полезный эксперт по экологии. Ты помнишь предыдущие сообщения " +
	"и можешь поддерживать осмысленный диалог. Отвечай на вопросы, связанные с экологией и переработкой. " +
	"Будь кратким, но информативным. Отвечай строго на русском языке. Не включай в ответ примеры вопросов или текст на других языках. " +
	"Важно: Не приводи в пример названия реальных компаний, брендов или имена людей, если тебя об этом не просят напрямую. " +
	"Если вопрос не по теме, вежливо откажи: '" + OffTopicReply + "'"

// Line keys of the quiz reply format.
const (
	quizKeyQuestion = "Вопрос"
	quizKeyCorrect  = "Верный ответ"
	quizKeyWrong    = "Неверный ответ %d"
)

// QuizOptionMaxLen bounds every answer option.
const QuizOptionMaxLen = 80

// QuizPrompt asks for a question built on fact.
func QuizPrompt(fact string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Создай вопрос для викторины на основе этого факта: '%s'.\n", fact)
	b.WriteString("Затем придумай 3 неверных, но правдоподобных ответа на этот вопрос.\n")
	b.WriteString("Верни результат в формате:\n")
	b.WriteString(quizKeyQuestion + ": [Твой вопрос здесь]\n")
	b.WriteString(quizKeyCorrect + ": [Перефразированный факт или краткий ответ на вопрос]\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, quizKeyWrong+": [Твой неверный вариант]\n", i)
	}
	fmt.Fprintf(&b, "Каждый вариант ответа не должен превышать %d символов.", QuizOptionMaxLen)
	return b.String()
}
