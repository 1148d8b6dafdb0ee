package projection

import (
	"math"
	"strings"

	"boards/internal/board"
	"boards/internal/workflow"
)

// ProjectValues считает значения колонок доски для заявки из её текущего состояния.
// Приватные колонки без права view_private_fields не попадают в результат вовсе.
// Пустые значения не возвращаются.
func ProjectValues(b board.Board, item workflow.Item, perms workflow.Permissions) map[string]board.Value {
	out := make(map[string]board.Value)
	current, hasStage := item.CurrentStage()
	for _, p := range b.Properties {
		if p.Private && !perms.ViewPrivateFields {
			continue
		}
		var v board.Value
		switch p.Type {
		case board.TypeProposalStatus:
			v = board.List(string(item.RawStatus()))
		case board.TypeProposalEvaluationType:
			if hasStage {
				v = board.Text(string(current.Type))
			}
		case board.TypeProposalStep:
			if hasStage {
				if o, ok := p.OptionByValue(current.Title); ok {
					v = board.Text(o.ID)
				} else {
					v = board.Text(current.Title)
				}
			}
		case board.TypeProposalAuthor:
			if len(item.AuthorIDs) > 0 {
				v = board.List(item.AuthorIDs...)
			}
		case board.TypeProposalReviewer:
			if hasStage {
				v = reviewerIDs(current)
			}
		case board.TypeProposalPublishDate:
			if item.PublishedAt > 0 {
				v = board.Number(float64(item.PublishedAt))
			}
		case board.TypeProposalDueDate:
			if hasStage && current.DueDate > 0 {
				v = board.Number(float64(current.DueDate))
			}
		case board.TypeProposalURL:
			v = board.Text(ItemURL(item))
		case board.TypeFormField:
			v = formValue(p, item)
		default:
			if p.EvaluationTitle != "" {
				v = stageValue(p, item)
				break
			}
			if Derived(p) {
				break
			}
			// собственная колонка: берём значение заявки как есть
			raw, ok := item.Fields[p.ID]
			if !ok {
				break
			}
			fv, err := board.FromAny(raw)
			if err != nil {
				break
			}
			v = fv
		}
		if !v.IsEmpty() {
			out[p.ID] = v
		}
	}
	return out
}

// ItemURL: относительная ссылка на заявку; абсолютной её делает экспорт.
func ItemURL(item workflow.Item) string {
	return "/" + item.SpaceID + "/" + item.Path
}

func reviewerIDs(st workflow.Stage) board.Value {
	ids := make([]string, 0, len(st.Reviewers))
	for _, r := range st.Reviewers {
		if id := r.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return board.Value{}
	}
	return board.List(ids...)
}

func formValue(p board.Property, item workflow.Item) board.Value {
	if k, ok := strings.CutPrefix(p.FormFieldID, ProjectFieldPrefix); ok {
		if s := item.ProjectFields[k]; s != "" {
			return board.Text(s)
		}
		return board.Value{}
	}
	raw, ok := item.FormAnswers[p.FormFieldID]
	if !ok {
		return board.Value{}
	}
	v, err := board.FromAny(raw)
	if err != nil {
		return board.Value{}
	}
	return v
}

// stageValue: агрегаты этапа и критериев; пересчитываются из ответов при каждом чтении.
func stageValue(p board.Property, item workflow.Item) board.Value {
	if p.TemplateID != "" && item.TemplateID != p.TemplateID {
		return board.Value{}
	}
	st, ok := item.StageByTitle(p.EvaluationTitle)
	if !ok {
		return board.Value{}
	}
	switch p.Type {
	case board.TypeProposalEvaluatedBy:
		return evaluatedBy(st)
	case board.TypeProposalEvaluationTotal:
		return board.Number(aggregate(st.Answers).total)
	case board.TypeProposalEvaluationAverage:
		return aggregate(st.Answers).average()
	case board.TypeProposalEvaluationReviewerAverage:
		return aggregate(st.Answers).reviewerAverage()
	}

	critID := ""
	for _, c := range st.Criteria {
		if c.Title == p.CriteriaTitle {
			critID = c.ID
			break
		}
	}
	if critID == "" {
		return board.Value{}
	}
	var answers []workflow.RubricAnswer
	for _, a := range st.Answers {
		if a.CriterionID == critID {
			answers = append(answers, a)
		}
	}
	switch p.Type {
	case board.TypeProposalRubricCriteriaTotal:
		return board.Number(aggregate(answers).total)
	case board.TypeProposalRubricCriteriaAverage:
		return aggregate(answers).average()
	case board.TypeProposalRubricCriteriaReviewerScore:
		for _, a := range answers {
			if a.UserID == p.ReviewerID && a.Score != nil {
				return board.Number(*a.Score)
			}
		}
	case board.TypeProposalRubricCriteriaReviewerComment:
		for _, a := range answers {
			if a.UserID == p.ReviewerID && a.Comment != "" {
				return board.Text(a.Comment)
			}
		}
	}
	return board.Value{}
}

// evaluatedBy: кто уже высказался на этапе: решения и ответы рубрики, без повторов.
func evaluatedBy(st workflow.Stage) board.Value {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range st.Reviews {
		add(r.ReviewerID)
	}
	for _, a := range st.Answers {
		add(a.UserID)
	}
	if len(ids) == 0 {
		return board.Value{}
	}
	return board.List(ids...)
}

type stats struct {
	total     float64
	answers   int
	reviewers int
}

func aggregate(answers []workflow.RubricAnswer) stats {
	var s stats
	seen := map[string]bool{}
	for _, a := range answers {
		if a.Score == nil {
			continue
		}
		s.total += *a.Score
		s.answers++
		if !seen[a.UserID] {
			seen[a.UserID] = true
			s.reviewers++
		}
	}
	return s
}

// average без ответов пустое, а не NaN.
func (s stats) average() board.Value {
	if s.answers == 0 {
		return board.Value{}
	}
	return board.Number(round2(s.total / float64(s.answers)))
}

func (s stats) reviewerAverage() board.Value {
	if s.reviewers == 0 {
		return board.Value{}
	}
	return board.Number(round2(s.total / float64(s.reviewers)))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// ProjectCard накладывает посчитанные значения на сохранённую карточку.
// Сохранённые значения приватных колонок тоже скрываются без права view_private_fields.
func ProjectCard(b board.Board, card board.Card, item workflow.Item, perms workflow.Permissions) board.Card {
	out := card
	out.Values = make(map[string]board.Value, len(card.Values))
	for id, v := range card.Values {
		if p, ok := b.Property(id); ok && p.Private && !perms.ViewPrivateFields {
			continue
		}
		out.Values[id] = v
	}
	for id, v := range ProjectValues(b, item, perms) {
		out.Values[id] = v
	}
	return out
}

// FilterVisible оставляет карточки, чью заявку актор может видеть.
// Карточки без привязки к заявке проходят всегда; привязанные к удалённой
// или снятой с публикации заявке отбрасываются.
func FilterVisible(cards []board.Card, items map[string]workflow.Item, perms map[string]workflow.Permissions) []board.Card {
	out := make([]board.Card, 0, len(cards))
	for _, c := range cards {
		if c.SyncedWith == "" {
			out = append(out, c)
			continue
		}
		it, ok := items[c.SyncedWith]
		if !ok || !it.Visible() || !perms[c.SyncedWith].View {
			continue
		}
		out = append(out, c)
	}
	return out
}
