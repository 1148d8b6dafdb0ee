// Package filter вычисляет дерево фильтра представления над карточками доски.
// Все функции чистые: на вход снимки доски и карточек, побочных эффектов нет (кроме лога).
package filter

import (
	"fmt"
	"log"

	"boards/internal/board"
	"boards/internal/workflow"
)

// StatusFunc переводит сырой код результата и тип этапа в отображаемый статус.
type StatusFunc func(result, evaluationType string) string

// Engine: настройки вычисления. Нулевое значение готово к работе.
type Engine struct {
	// Logger для устаревших ссылок на колонки и битых значений; nil — log.Default().
	Logger *log.Logger
	// Status: отображение для колонки proposal_status; nil — workflow.DisplayStatus.
	Status StatusFunc
}

var defaultEngine Engine

// IsClauseMet: пакетный вариант с настройками по умолчанию.
func IsClauseMet(c board.FilterClause, b board.Board, card board.Card) bool {
	return defaultEngine.IsClauseMet(c, b, card)
}

func IsGroupMet(g board.FilterGroup, b board.Board, card board.Card) bool {
	return defaultEngine.IsGroupMet(g, b, card)
}

func ApplyGroup(g board.FilterGroup, b board.Board, cards []board.Card) []board.Card {
	return defaultEngine.ApplyGroup(g, b, cards)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (e Engine) status(result, evaluationType string) string {
	if e.Status != nil {
		return e.Status(result, evaluationType)
	}
	return workflow.DisplayStatus(result, evaluationType)
}

// IsGroupMet: пустая группа истинна; or/and с коротким замыканием.
func (e Engine) IsGroupMet(g board.FilterGroup, b board.Board, card board.Card) bool {
	if len(g.Filters) == 0 {
		return true
	}
	or := g.Operation == board.OperationOr
	for _, it := range g.Filters {
		var met bool
		switch {
		case it.Group != nil:
			met = e.IsGroupMet(*it.Group, b, card)
		case it.Clause != nil:
			met = e.IsClauseMet(*it.Clause, b, card)
		default:
			// пустой элемент ничего не ограничивает
			met = true
		}
		if or && met {
			return true
		}
		if !or && !met {
			return false
		}
	}
	return !or
}

// ApplyGroup оставляет карточки, удовлетворяющие группе. Непрошедшая карточка остаётся,
// если подходит хотя бы одна из её подкарточек; список подкарточек тогда урезается до подходящих.
func (e Engine) ApplyGroup(g board.FilterGroup, b board.Board, cards []board.Card) []board.Card {
	out := make([]board.Card, 0, len(cards))
	for _, c := range cards {
		if e.IsGroupMet(g, b, c) {
			out = append(out, c)
			continue
		}
		if len(c.SubCards) == 0 {
			continue
		}
		matched := make([]board.Card, 0, len(c.SubCards))
		for _, sub := range c.SubCards {
			if e.IsGroupMet(g, b, sub) {
				matched = append(matched, sub)
			}
		}
		if len(matched) > 0 {
			c.SubCards = matched
			out = append(out, c)
		}
	}
	return out
}

// IsClauseMet проверяет одну клаузу. Ссылка на отсутствующую колонку логируется и даёт false.
// Неизвестное условие для известного класса типов — ошибка программы, паника.
func (e Engine) IsClauseMet(c board.FilterClause, b board.Board, card board.Card) bool {
	if c.PropertyID == board.TitlePropertyID {
		return matchText(c, []string{fold(card.Title)})
	}
	prop, ok := b.Property(c.PropertyID)
	if !ok {
		e.logf("filter: board %s: clause %s references missing property %s", b.ID, c.FilterID, c.PropertyID)
		return false
	}
	class := prop.Type.Class()
	if class == "" {
		e.logf("filter: board %s: property %s has unknown type %q", b.ID, prop.ID, prop.Type)
		return false
	}
	values := resolve(prop, card)

	switch class {
	case board.ClassText:
		return matchText(c, values)
	case board.ClassBoolean:
		return matchBoolean(c, values)
	case board.ClassNumber:
		return matchNumber(c, values)
	case board.ClassSelect:
		return matchSelect(c, values)
	case board.ClassMultiSelect:
		if prop.Type == board.TypeProposalStatus {
			values = e.mapStatus(b, card, values)
		}
		return matchMultiSelect(c, values)
	case board.ClassDate:
		return e.matchDate(c, b, prop, card, values)
	}
	panic(&ConditionError{Class: class, Condition: c.Condition})
}

// resolve: нормализованные значения ячейки с откатом на служебные поля карточки.
func resolve(prop board.Property, card board.Card) []string {
	v := card.Value(prop.ID)
	if !v.IsEmpty() || !prop.Type.Intrinsic() {
		return v.Strings()
	}
	switch prop.Type {
	case board.TypeCreatedTime:
		return board.Number(float64(card.CreatedAt)).Strings()
	case board.TypeUpdatedTime:
		return board.Number(float64(card.UpdatedAt)).Strings()
	case board.TypeCreatedBy:
		return board.Text(card.CreatedBy).Strings()
	case board.TypeUpdatedBy:
		return board.Text(card.UpdatedBy).Strings()
	}
	return nil
}

// mapStatus: сырые коды результата -> отображаемые статусы с учётом типа текущего этапа,
// который лежит в колонке proposal_evaluation_type той же карточки.
func (e Engine) mapStatus(b board.Board, card board.Card, raw []string) []string {
	evalType := ""
	for _, p := range b.Properties {
		if p.Type == board.TypeProposalEvaluationType {
			evalType = card.Value(p.ID).First()
			break
		}
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, e.status(r, evalType))
	}
	return out
}

// ConditionError: условие не поддерживается классом типа колонки.
type ConditionError struct {
	Class     board.Class
	Condition board.Condition
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("filter: condition %q is not supported for %s properties", e.Condition, e.Class)
}
