// Package workflow — внешний домен (заявки и их этапы оценки), который доски материализуют.
// Здесь только форма данных и интерфейсы чтения; сама логика этапов живёт снаружи.
package workflow

import (
	"context"
	"time"
)

// EvaluationType: тип этапа оценки.
type EvaluationType string

const (
	EvaluationFeedback EvaluationType = "feedback"
	EvaluationPassFail EvaluationType = "pass_fail"
	EvaluationRubric   EvaluationType = "rubric"
	EvaluationVote     EvaluationType = "vote"
)

// Result: сырой код результата этапа, как его хранит внешний домен.
type Result string

const (
	ResultInProgress Result = "in_progress"
	ResultPass       Result = "pass"
	ResultFail       Result = "fail"
)

type ItemStatus string

const (
	StatusDraft     ItemStatus = "draft"
	StatusPublished ItemStatus = "published"
)

type Criterion struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// RubricAnswer: ответ ревьюера по одному критерию.
type RubricAnswer struct {
	UserID      string   `json:"userId" yaml:"userId"`
	CriterionID string   `json:"criterionId" yaml:"criterionId"`
	Score       *float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Comment     string   `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Reviewer: назначенный ревьюер: пользователь, роль или системная роль (author, space_member...).
type Reviewer struct {
	UserID     string `json:"userId,omitempty" yaml:"userId,omitempty"`
	RoleID     string `json:"roleId,omitempty" yaml:"roleId,omitempty"`
	SystemRole string `json:"systemRole,omitempty" yaml:"systemRole,omitempty"`
}

// ID: то, что попадает в колонку ревьюеров.
func (r Reviewer) ID() string {
	switch {
	case r.UserID != "":
		return r.UserID
	case r.RoleID != "":
		return r.RoleID
	}
	return r.SystemRole
}

// Review: решение ревьюера на pass/fail или vote этапе.
type Review struct {
	ReviewerID string `json:"reviewerId" yaml:"reviewerId"`
	Result     Result `json:"result" yaml:"result"`
}

// Stage: этап оценки конкретной заявки.
type Stage struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	Type      EvaluationType `json:"type" yaml:"type"`
	Result    Result         `json:"result,omitempty" yaml:"result,omitempty"`
	Reviewers []Reviewer     `json:"reviewers,omitempty" yaml:"reviewers,omitempty"`
	Reviews   []Review       `json:"reviews,omitempty" yaml:"reviews,omitempty"`
	Criteria  []Criterion    `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Answers   []RubricAnswer `json:"answers,omitempty" yaml:"answers,omitempty"`
	DueDate   int64          `json:"dueDate,omitempty" yaml:"dueDate,omitempty"` // epoch millis, 0 — нет
}

// Template: шаблон workflow: упорядоченные этапы без результатов.
type Template struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Stages []Stage `json:"stages" yaml:"stages"`
}

// FormField: поле формы заявки.
type FormField struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Private bool   `json:"private,omitempty" yaml:"private,omitempty"`
}

// Item: заявка.
type Item struct {
	ID             string         `json:"id" yaml:"id"`
	SpaceID        string         `json:"spaceId" yaml:"spaceId"`
	TemplateID     string         `json:"templateId,omitempty" yaml:"templateId,omitempty"`
	Title          string         `json:"title" yaml:"title"`
	Content        string         `json:"content,omitempty" yaml:"content,omitempty"`
	Path           string         `json:"path" yaml:"path"`
	Status         ItemStatus     `json:"status" yaml:"status"`
	Archived       bool           `json:"archived,omitempty" yaml:"archived,omitempty"`
	AuthorIDs      []string       `json:"authorIds,omitempty" yaml:"authorIds,omitempty"`
	CurrentStageID string         `json:"currentStageId,omitempty" yaml:"currentStageId,omitempty"`
	Stages         []Stage        `json:"stages,omitempty" yaml:"stages,omitempty"`
	FormFields     []FormField    `json:"formFields,omitempty" yaml:"formFields,omitempty"`
	FormAnswers    map[string]any `json:"formAnswers,omitempty" yaml:"formAnswers,omitempty"`
	// Fields: собственные значения колонок доски, копируются как есть.
	Fields        map[string]any    `json:"fields,omitempty" yaml:"fields,omitempty"`
	ProjectFields map[string]string `json:"projectFields,omitempty" yaml:"projectFields,omitempty"`
	CreatedAt     int64             `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     int64             `json:"updatedAt" yaml:"updatedAt"`
	PublishedAt   int64             `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
	CreatedBy     string            `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
}

// Visible: заявка опубликована и не в архиве.
func (it Item) Visible() bool {
	return it.Status == StatusPublished && !it.Archived
}

// CurrentStage: активный этап: явно указанный, иначе первый непрошедший, иначе последний.
func (it Item) CurrentStage() (Stage, bool) {
	if len(it.Stages) == 0 {
		return Stage{}, false
	}
	if it.CurrentStageID != "" {
		for _, s := range it.Stages {
			if s.ID == it.CurrentStageID {
				return s, true
			}
		}
	}
	for _, s := range it.Stages {
		if s.Result != ResultPass {
			return s, true
		}
	}
	return it.Stages[len(it.Stages)-1], true
}

// StageByTitle: этап заявки с данным названием.
func (it Item) StageByTitle(title string) (Stage, bool) {
	for _, s := range it.Stages {
		if s.Title == title {
			return s, true
		}
	}
	return Stage{}, false
}

// Permissions: флаги доступа актора к заявке.
type Permissions struct {
	View              bool `json:"view" yaml:"view"`
	ViewPrivateFields bool `json:"view_private_fields" yaml:"view_private_fields"`
	Edit              bool `json:"edit" yaml:"edit"`
}

// Reader: источник заявок. updatedAfter == 0 означает «все опубликованные».
type Reader interface {
	ListTemplates(ctx context.Context, spaceID string) ([]Template, error)
	ListPublished(ctx context.Context, spaceID string, updatedAfter int64) ([]Item, error)
	GetItems(ctx context.Context, ids []string) (map[string]Item, error)
}

// PermissionOracle вычисляет права актора по заявкам.
type PermissionOracle interface {
	Permissions(ctx context.Context, actorID string, itemIDs []string) (map[string]Permissions, error)
}

// Millis: удобство для тестов и фикстур.
func Millis(t time.Time) int64 { return t.UTC().UnixMilli() }
