// Package board — типизированная модель доски: схема колонок, карточки, представления.
package board

import (
	"errors"
	"slices"
	"strings"
)

// PropertyType: тип данных колонки.
type PropertyType string

const (
	TypeText        PropertyType = "text"
	TypeNumber      PropertyType = "number"
	TypeCheckbox    PropertyType = "checkbox"
	TypeSelect      PropertyType = "select"
	TypeMultiSelect PropertyType = "multi_select"
	TypeDate        PropertyType = "date"
	TypePerson      PropertyType = "person"
	TypeURL         PropertyType = "url"
	TypeEmail       PropertyType = "email"
	TypePhone       PropertyType = "phone"
	TypeCreatedTime PropertyType = "created_time"
	TypeUpdatedTime PropertyType = "updated_time"
	TypeCreatedBy   PropertyType = "created_by"
	TypeUpdatedBy   PropertyType = "updated_by"

	// колонки, которые порождает синхронизация с внешним workflow
	TypeProposalStatus                        PropertyType = "proposal_status"
	TypeProposalStep                          PropertyType = "proposal_step"
	TypeProposalURL                           PropertyType = "proposal_url"
	TypeProposalEvaluationType                PropertyType = "proposal_evaluation_type"
	TypeProposalAuthor                        PropertyType = "proposal_author"
	TypeProposalReviewer                      PropertyType = "proposal_reviewer"
	TypeProposalPublishDate                   PropertyType = "proposal_publish_date"
	TypeProposalDueDate                       PropertyType = "proposal_due_date"
	TypeProposalEvaluatedBy                   PropertyType = "proposal_evaluated_by"
	TypeProposalEvaluationTotal               PropertyType = "proposal_evaluation_total"
	TypeProposalEvaluationAverage             PropertyType = "proposal_evaluation_average"
	TypeProposalEvaluationReviewerAverage     PropertyType = "proposal_evaluation_reviewer_average"
	TypeProposalRubricCriteriaTotal           PropertyType = "proposal_rubric_criteria_total"
	TypeProposalRubricCriteriaAverage         PropertyType = "proposal_rubric_criteria_average"
	TypeProposalRubricCriteriaReviewerScore   PropertyType = "proposal_rubric_criteria_reviewer_score"
	TypeProposalRubricCriteriaReviewerComment PropertyType = "proposal_rubric_criteria_reviewer_comment"
	TypeFormField                             PropertyType = "form_field"
)

// Types: все известные типы в порядке объявления.
var Types = []PropertyType{
	TypeText, TypeNumber, TypeCheckbox, TypeSelect, TypeMultiSelect, TypeDate, TypePerson,
	TypeURL, TypeEmail, TypePhone, TypeCreatedTime, TypeUpdatedTime, TypeCreatedBy, TypeUpdatedBy,
	TypeProposalStatus, TypeProposalStep, TypeProposalURL, TypeProposalEvaluationType,
	TypeProposalAuthor, TypeProposalReviewer, TypeProposalPublishDate, TypeProposalDueDate,
	TypeProposalEvaluatedBy, TypeProposalEvaluationTotal, TypeProposalEvaluationAverage,
	TypeProposalEvaluationReviewerAverage, TypeProposalRubricCriteriaTotal,
	TypeProposalRubricCriteriaAverage, TypeProposalRubricCriteriaReviewerScore,
	TypeProposalRubricCriteriaReviewerComment, TypeFormField,
}

// Class: семейство типов с общим набором условий фильтра.
type Class string

const (
	ClassText        Class = "text"
	ClassBoolean     Class = "boolean"
	ClassNumber      Class = "number"
	ClassSelect      Class = "select"
	ClassMultiSelect Class = "multi_select"
	ClassDate        Class = "date"
)

// Class возвращает семейство типа; пустая строка — тип неизвестен.
func (t PropertyType) Class() Class {
	switch t {
	case TypeText, TypeURL, TypeEmail, TypePhone, TypeProposalURL,
		TypeProposalRubricCriteriaReviewerComment, TypeFormField:
		return ClassText
	case TypeCheckbox:
		return ClassBoolean
	case TypeNumber, TypeProposalEvaluationTotal, TypeProposalEvaluationAverage,
		TypeProposalEvaluationReviewerAverage, TypeProposalRubricCriteriaTotal,
		TypeProposalRubricCriteriaAverage, TypeProposalRubricCriteriaReviewerScore:
		return ClassNumber
	case TypeSelect, TypeProposalStep, TypeProposalEvaluationType, TypeCreatedBy, TypeUpdatedBy:
		return ClassSelect
	case TypeMultiSelect, TypePerson, TypeProposalAuthor, TypeProposalReviewer,
		TypeProposalEvaluatedBy, TypeProposalStatus:
		return ClassMultiSelect
	case TypeDate, TypeCreatedTime, TypeUpdatedTime, TypeProposalPublishDate, TypeProposalDueDate:
		return ClassDate
	}
	return ""
}

// HasOptions: у типа есть набор вариантов.
func (t PropertyType) HasOptions() bool {
	return t == TypeSelect || t == TypeMultiSelect
}

// Intrinsic: значение не хранится в карточке, а выводится из её служебных полей.
func (t PropertyType) Intrinsic() bool {
	switch t {
	case TypeCreatedTime, TypeUpdatedTime, TypeCreatedBy, TypeUpdatedBy:
		return true
	}
	return false
}

func (t PropertyType) Valid() bool { return t.Class() != "" }

// Synced: колонку заполняет синхронизация с workflow заявок.
func (t PropertyType) Synced() bool {
	return t == TypeFormField || strings.HasPrefix(string(t), "proposal_")
}

// TitlePropertyID: колонка заголовка; в схеме не хранится, но всегда видима.
const TitlePropertyID = "__title"

// Option: вариант select/multi_select.
type Option struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Color string `json:"color,omitempty"`
}

// Property: определение колонки.
type Property struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     PropertyType `json:"type"`
	Options  []Option     `json:"options,omitempty"`
	Private  bool         `json:"private,omitempty"`
	ReadOnly bool         `json:"readOnly,omitempty"`

	// привязка к внешнему workflow (для сгенерированных колонок)
	TemplateID      string `json:"templateId,omitempty"`
	EvaluationTitle string `json:"evaluationTitle,omitempty"`
	CriteriaTitle   string `json:"criteriaTitle,omitempty"`
	ReviewerID      string `json:"reviewerId,omitempty"`
	FormFieldID     string `json:"formFieldId,omitempty"`
}

// OptionByID ищет вариант по id.
func (p Property) OptionByID(id string) (Option, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// OptionByValue ищет вариант по отображаемому значению (без учёта регистра).
func (p Property) OptionByValue(v string) (Option, bool) {
	for _, o := range p.Options {
		if strings.EqualFold(o.Value, v) {
			return o, true
		}
	}
	return Option{}, false
}

// OptionIndex: позиция варианта (для сортировки), -1 если нет.
func (p Property) OptionIndex(id string) int {
	for i, o := range p.Options {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Permission: строка доступа, наследуется карточками синхронизированной доски.
type Permission struct {
	UserID string `json:"userId,omitempty"`
	RoleID string `json:"roleId,omitempty"`
	Public bool   `json:"public,omitempty"`
	Level  string `json:"level"` // view | edit | full_access
}

// Board: доска со схемой колонок.
type Board struct {
	ID          string       `json:"id"`
	SpaceID     string       `json:"spaceId"`
	Title       string       `json:"title"`
	Properties  []Property   `json:"cardProperties"`
	SourceType  string       `json:"sourceType,omitempty"` // "" | "proposals"
	Selection   *Selection   `json:"selection,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   int64        `json:"createdAt"`
	UpdatedAt   int64        `json:"updatedAt"`
	CreatedBy   string       `json:"createdBy"`
	UpdatedBy   string       `json:"updatedBy"`
}

// SourceProposals: доска материализует внешний workflow.
const SourceProposals = "proposals"

// Property ищет колонку по id.
func (b Board) Property(id string) (Property, bool) {
	for _, p := range b.Properties {
		if p.ID == id {
			return p, true
		}
	}
	return Property{}, false
}

// PropertyIndex: позиция колонки, -1 если нет.
func (b Board) PropertyIndex(id string) int {
	for i, p := range b.Properties {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Selection: что пользователь выбрал для показа на синхронизированной доске.
type Selection struct {
	// по templateId — названия этапов, чьи агрегаты показываем
	Stages map[string][]string `json:"stages,omitempty"`
	// id полей формы
	FormFields []string `json:"formFields,omitempty"`
	// ключи полей профиля проекта
	ProjectFields []string `json:"projectFields,omitempty"`
	// id собственных колонок (не сгенерированных)
	CustomProperties []string `json:"customProperties,omitempty"`
	// глобальные атрибуты workflow (status, step, ...) по типу
	Defaults []PropertyType `json:"defaults,omitempty"`
}

// Card: строка доски.
type Card struct {
	ID          string           `json:"id"`
	BoardID     string           `json:"boardId"`
	ParentID    string           `json:"parentId"` // board id или id родительской карточки
	Title       string           `json:"title"`
	Values      map[string]Value `json:"properties"`
	Content     string           `json:"contentText,omitempty"`
	SyncedWith  string           `json:"syncedWith,omitempty"`
	IsTemplate  bool             `json:"isTemplate,omitempty"`
	Permissions []Permission     `json:"permissions,omitempty"`
	CreatedAt   int64            `json:"createdAt"`
	UpdatedAt   int64            `json:"updatedAt"`
	CreatedBy   string           `json:"createdBy"`
	UpdatedBy   string           `json:"updatedBy"`

	// SubCards заполняется вызывающим (например, заявки к награде); в блок не пишется.
	SubCards []Card `json:"subCards,omitempty"`
}

// Value возвращает значение колонки (пустое, если нет).
func (c Card) Value(id string) Value {
	if c.Values == nil {
		return Value{}
	}
	return c.Values[id]
}

// ViewKind: вид представления.
type ViewKind string

const (
	ViewTable    ViewKind = "table"
	ViewBoard    ViewKind = "board"
	ViewGallery  ViewKind = "gallery"
	ViewCalendar ViewKind = "calendar"
)

// SortOption: ключ сортировки.
type SortOption struct {
	PropertyID string `json:"propertyId"`
	Reversed   bool   `json:"reversed"`
}

// View: сохранённая конфигурация отображения.
type View struct {
	ID                    string       `json:"id"`
	BoardID               string       `json:"boardId"`
	Title                 string       `json:"title"`
	Kind                  ViewKind     `json:"viewType"`
	SortOptions           []SortOption `json:"sortOptions"`
	VisiblePropertyIDs    []string     `json:"visiblePropertyIds"`
	Filter                FilterGroup  `json:"filter"`
	CardOrder             []string     `json:"cardOrder"`
	GroupByID             string       `json:"groupById,omitempty"`
	DateDisplayPropertyID string       `json:"dateDisplayPropertyId,omitempty"`
	CreatedAt             int64        `json:"createdAt"`
	UpdatedAt             int64        `json:"updatedAt"`
	CreatedBy             string       `json:"createdBy"`
	UpdatedBy             string       `json:"updatedBy"`
}

// VisibleIDs: видимые колонки по порядку. Заголовок остаётся там, куда его поставили;
// если его нет в списке, он идёт первым. Повторы отбрасываются.
func (v View) VisibleIDs() []string {
	out := make([]string, 0, len(v.VisiblePropertyIDs)+1)
	if !slices.Contains(v.VisiblePropertyIDs, TitlePropertyID) {
		out = append(out, TitlePropertyID)
	}
	for _, id := range v.VisiblePropertyIDs {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ErrInvalidInput: отсутствует обязательный идентификатор или поле.
var ErrInvalidInput = errors.New("invalid input")
