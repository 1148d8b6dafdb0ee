package filter

import (
	"fmt"

	"boards/internal/board"
)

// Validate проверяет дерево перед сохранением: операции, существование колонок и
// допустимость условий. Вычисление на невалидном условии паникует, поэтому API зовёт это заранее.
func Validate(g board.FilterGroup, b board.Board) error {
	switch g.Operation {
	case board.OperationAnd, board.OperationOr:
	default:
		return fmt.Errorf("%w: filter group operation %q", board.ErrInvalidInput, g.Operation)
	}
	for _, it := range g.Filters {
		switch {
		case it.Group != nil:
			if err := Validate(*it.Group, b); err != nil {
				return err
			}
		case it.Clause != nil:
			if err := validateClause(*it.Clause, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateClause(c board.FilterClause, b board.Board) error {
	if c.PropertyID == "" {
		return fmt.Errorf("%w: filter clause %s has no propertyId", board.ErrInvalidInput, c.FilterID)
	}
	class := board.ClassText
	if c.PropertyID != board.TitlePropertyID {
		p, ok := b.Property(c.PropertyID)
		if !ok {
			return fmt.Errorf("%w: filter clause %s references unknown property %s", board.ErrInvalidInput, c.FilterID, c.PropertyID)
		}
		class = p.Type.Class()
	}
	if !Supported(class, c.Condition) {
		return &ConditionError{Class: class, Condition: c.Condition}
	}
	return nil
}
