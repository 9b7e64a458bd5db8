// Package defaults содержит встроенные стартовые данные академии:
// ими засеваются пустые удалённые коллекции и на них откатывается
// клиент при отсутствии кэша.
package defaults

import "tg-academy-bot/internal/domain"

// Config стартовая конфигурация приложения.
func Config() domain.AppConfig {
	var cfg domain.AppConfig
	cfg.Features.Practice = true
	cfg.Features.Notebook = true
	cfg.Features.Habits = true
	cfg.Features.Goals = true
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.Temperature = 0.7
	cfg.Agent.SystemPrompt = "Ты — строгий, но доброжелательный наставник отдела продаж. Проверяй домашние задания по критериям урока."
	return cfg
}

// Modules стартовая программа курса; порядок в срезе задаёт порядок
// показа.
func Modules() []domain.CourseModule {
	return []domain.CourseModule{
		{
			ID:          "mod-basics",
			Title:       "Основы продаж",
			Description: "Воронка, этапы сделки и первый контакт с клиентом.",
			Lessons: []domain.Lesson{
				{ID: "lesson-funnel", Title: "Воронка продаж", Content: "Разбираем этапы воронки и типовые причины потерь на каждом.", Homework: "Опишите воронку вашего продукта по этапам."},
				{ID: "lesson-first-call", Title: "Первый звонок", Content: "Структура первого касания: приветствие, повод, вопрос-зацепка.", Homework: "Запишите скрипт первого звонка на 60 секунд."},
			},
		},
		{
			ID:          "mod-needs",
			Title:       "Выявление потребностей",
			Description: "Открытые вопросы, активное слушание, СПИН.",
			Lessons: []domain.Lesson{
				{ID: "lesson-questions", Title: "Открытые вопросы", Content: "Почему закрытые вопросы убивают диалог и как их переформулировать.", Homework: "Переформулируйте десять закрытых вопросов в открытые."},
				{ID: "lesson-spin", Title: "СПИН на практике", Content: "Ситуационные, проблемные, извлекающие и направляющие вопросы на живом примере.", Homework: "Составьте СПИН-цепочку для своего продукта."},
			},
		},
		{
			ID:          "mod-objections",
			Title:       "Работа с возражениями",
			Description: "«Дорого», «подумаю», «у нас уже есть поставщик».",
			Lessons: []domain.Lesson{
				{ID: "lesson-expensive", Title: "Возражение «дорого»", Content: "Присоединение, уточнение, аргументация ценности вместо скидки.", Homework: "Запишите три варианта ответа на «дорого» без снижения цены."},
			},
		},
	}
}

// Materials стартовые материалы.
func Materials() []domain.Material {
	return []domain.Material{
		{ID: "mat-checklist", Title: "Чек-лист первого звонка", Kind: "pdf", URL: "https://example.com/first-call.pdf"},
		{ID: "mat-phrases", Title: "50 фраз присоединения", Kind: "doc", URL: "https://example.com/phrases.docx"},
	}
}

// Streams стартовое расписание эфиров.
func Streams() []domain.Stream {
	return []domain.Stream{
		{ID: "stream-qa", Title: "Разбор звонков учеников", Link: "https://example.com/live"},
	}
}

// Events стартовые события.
func Events() []domain.Event {
	return []domain.Event{
		{ID: "event-onboarding", Title: "Старт потока", Description: "Знакомство с программой и правилами академии."},
	}
}

// Scenarios стартовые сценарии ролевых тренировок.
func Scenarios() []domain.Scenario {
	return []domain.Scenario{
		{ID: "scen-cold", Title: "Холодный звонок директору", Persona: "Занятой директор небольшой сети магазинов, раздражён звонками.", Goal: "Договориться о пятнадцатиминутной встрече.", Difficulty: "hard"},
		{ID: "scen-price", Title: "Клиент торгуется", Persona: "Закупщик, который всегда просит скидку и ссылается на конкурентов.", Goal: "Удержать цену, предложив ценность.", Difficulty: "medium"},
	}
}
