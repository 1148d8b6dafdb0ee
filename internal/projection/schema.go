// Package projection материализует внешний workflow заявок в доску:
// выводит колонки из шаблонов, создаёт недостающие строки и считает значения при чтении.
package projection

import (
	"slices"
	"sort"
	"strings"

	"boards/internal/board"
	"boards/internal/workflow"
)

// ProjectFieldPrefix отличает поля профиля проекта от полей формы в FormFieldID.
const ProjectFieldPrefix = "project:"

// key: идентичность сгенерированной колонки; id колонки при пересборке не важен.
type key struct {
	typ       board.PropertyType
	template  string
	stage     string
	criterion string
	reviewer  string
	formField string
}

func keyOf(p board.Property) key {
	return key{
		typ:       p.Type,
		template:  p.TemplateID,
		stage:     p.EvaluationTitle,
		criterion: p.CriteriaTitle,
		reviewer:  p.ReviewerID,
		formField: p.FormFieldID,
	}
}

// Derived: колонка порождена синхронизацией, а не создана пользователем.
func Derived(p board.Property) bool { return p.Type.Synced() }

// globals: атрибуты workflow, общие для всех заявок, в порядке показа.
var globals = []struct {
	typ  board.PropertyType
	name string
}{
	{board.TypeProposalStatus, "Status"},
	{board.TypeProposalStep, "Step"},
	{board.TypeProposalAuthor, "Author"},
	{board.TypeProposalReviewer, "Reviewers"},
	{board.TypeProposalPublishDate, "Publish Date"},
	{board.TypeProposalDueDate, "Due Date"},
	{board.TypeProposalEvaluationType, "Evaluation Type"},
	{board.TypeProposalURL, "Proposal URL"},
}

// evaluationOptions: id варианта совпадает с сырым типом этапа, его и хранит карточка.
var evaluationOptions = []board.Option{
	{ID: string(workflow.EvaluationFeedback), Value: "Feedback"},
	{ID: string(workflow.EvaluationPassFail), Value: "Pass/Fail"},
	{ID: string(workflow.EvaluationRubric), Value: "Rubric"},
	{ID: string(workflow.EvaluationVote), Value: "Vote"},
}

// DeriveSchema дополняет existing колонками, выведенными из шаблонов и ответов ревьюеров.
// Существующая колонка с тем же ключом обновляется на месте (имя, варианты), новые дописываются в конец.
// Колонки на пару критерий+ревьюер появляются только когда ревьюер ответил.
func DeriveSchema(existing []board.Property, templates []workflow.Template, items []workflow.Item) []board.Property {
	return upsert(existing, derive(templates, items))
}

func derive(templates []workflow.Template, items []workflow.Item) []board.Property {
	var out []board.Property
	for _, g := range globals {
		p := board.Property{Name: g.name, Type: g.typ, ReadOnly: true}
		switch g.typ {
		case board.TypeProposalStep:
			p.Options = stepOptions(templates)
		case board.TypeProposalEvaluationType:
			p.Options = append([]board.Option(nil), evaluationOptions...)
		}
		out = append(out, p)
	}

	for _, t := range templates {
		for _, st := range t.Stages {
			stage := func(typ board.PropertyType, suffix string) board.Property {
				return board.Property{
					Name: st.Title + " " + suffix, Type: typ, ReadOnly: true,
					TemplateID: t.ID, EvaluationTitle: st.Title,
				}
			}
			out = append(out, stage(board.TypeProposalEvaluatedBy, "Evaluated By"))
			if st.Type != workflow.EvaluationRubric {
				continue
			}
			out = append(out,
				stage(board.TypeProposalEvaluationTotal, "Total"),
				stage(board.TypeProposalEvaluationAverage, "Average"),
				stage(board.TypeProposalEvaluationReviewerAverage, "Reviewer Average"),
			)
			for _, c := range st.Criteria {
				crit := func(typ board.PropertyType, suffix string) board.Property {
					p := stage(typ, suffix)
					p.Name = st.Title + ": " + c.Title + " " + suffix
					p.CriteriaTitle = c.Title
					return p
				}
				out = append(out,
					crit(board.TypeProposalRubricCriteriaTotal, "Total"),
					crit(board.TypeProposalRubricCriteriaAverage, "Average"),
				)
			}
			out = append(out, reviewerColumns(t, st, items)...)
		}
	}

	seenForm := map[string]bool{}
	project := map[string]bool{}
	for _, it := range items {
		for _, f := range it.FormFields {
			if seenForm[f.ID] {
				continue
			}
			seenForm[f.ID] = true
			out = append(out, board.Property{
				Name: f.Name, Type: board.TypeFormField, ReadOnly: true,
				Private: f.Private, FormFieldID: f.ID,
			})
		}
		for k := range it.ProjectFields {
			project[k] = true
		}
	}
	keys := make([]string, 0, len(project))
	for k := range project {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, board.Property{
			Name: k, Type: board.TypeFormField, ReadOnly: true,
			FormFieldID: ProjectFieldPrefix + k,
		})
	}
	return out
}

func stepOptions(templates []workflow.Template) []board.Option {
	var out []board.Option
	seen := map[string]bool{}
	for _, t := range templates {
		for _, st := range t.Stages {
			k := strings.ToLower(st.Title)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, board.Option{Value: st.Title})
		}
	}
	return out
}

// reviewerColumns: score/comment на каждую пару (критерий, ревьюер), у которой есть ответ.
func reviewerColumns(t workflow.Template, tst workflow.Stage, items []workflow.Item) []board.Property {
	var out []board.Property
	seen := map[key]bool{}
	for _, it := range items {
		if it.TemplateID != t.ID {
			continue
		}
		st, ok := it.StageByTitle(tst.Title)
		if !ok {
			continue
		}
		for _, a := range st.Answers {
			crit, ok := criterionTitle(a.CriterionID, st, tst)
			if !ok || a.UserID == "" {
				continue
			}
			for _, c := range []struct {
				typ    board.PropertyType
				suffix string
			}{
				{board.TypeProposalRubricCriteriaReviewerScore, "Score"},
				{board.TypeProposalRubricCriteriaReviewerComment, "Comment"},
			} {
				p := board.Property{
					Name:            tst.Title + ": " + crit + " " + a.UserID + " " + c.suffix,
					Type:            c.typ,
					ReadOnly:        true,
					TemplateID:      t.ID,
					EvaluationTitle: tst.Title,
					CriteriaTitle:   crit,
					ReviewerID:      a.UserID,
				}
				if k := keyOf(p); !seen[k] {
					seen[k] = true
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// criterionTitle ищет критерий по id сначала в этапе заявки, затем в шаблоне.
func criterionTitle(id string, stages ...workflow.Stage) (string, bool) {
	for _, st := range stages {
		for _, c := range st.Criteria {
			if c.ID == id {
				return c.Title, true
			}
		}
	}
	return "", false
}

func upsert(existing, derived []board.Property) []board.Property {
	out := make([]board.Property, len(existing))
	index := make(map[key]int, len(existing))
	for i, p := range existing {
		p.Options = append([]board.Option(nil), p.Options...)
		out[i] = p
		if Derived(p) {
			index[keyOf(p)] = i
		}
	}
	for _, d := range derived {
		k := keyOf(d)
		if i, ok := index[k]; ok {
			p := &out[i]
			p.Name = d.Name
			p.Private = d.Private
			p.ReadOnly = true
			p.Options = mergeOptions(p.Options, d.Options)
			continue
		}
		d.ID = board.NewID()
		d.Options = mergeOptions(nil, d.Options)
		index[k] = len(out)
		out = append(out, d)
	}
	return out
}

// mergeOptions сохраняет id уже существующих вариантов (по значению), новым выдаёт свежие.
func mergeOptions(have, want []board.Option) []board.Option {
	if len(want) == 0 {
		return nil
	}
	p := board.Property{Options: have}
	out := make([]board.Option, 0, len(want))
	for _, o := range want {
		if o.ID == "" {
			if prev, ok := p.OptionByValue(o.Value); ok {
				o.ID = prev.ID
				o.Color = prev.Color
			} else {
				o.ID = board.NewOptionID()
			}
		}
		out = append(out, o)
	}
	return out
}

// FilterSchema оставляет только выбранные пользователем колонки.
// Колонка типа этапа остаётся всегда: без неё не расшифровать сырые коды статуса.
// nil: выбора не было, схема не меняется.
func FilterSchema(props []board.Property, sel *board.Selection) []board.Property {
	out := make([]board.Property, 0, len(props))
	for _, p := range props {
		if sel == nil || selected(p, sel) {
			out = append(out, p)
		}
	}
	return out
}

func selected(p board.Property, sel *board.Selection) bool {
	switch {
	case p.Type == board.TypeProposalEvaluationType:
		return true
	case p.Type == board.TypeFormField:
		if k, ok := strings.CutPrefix(p.FormFieldID, ProjectFieldPrefix); ok {
			return slices.Contains(sel.ProjectFields, k)
		}
		return slices.Contains(sel.FormFields, p.FormFieldID)
	case p.EvaluationTitle != "":
		return slices.Contains(sel.Stages[p.TemplateID], p.EvaluationTitle)
	case Derived(p):
		return slices.Contains(sel.Defaults, p.Type)
	}
	// собственные колонки без явного выбора остаются
	return sel.CustomProperties == nil || slices.Contains(sel.CustomProperties, p.ID)
}
