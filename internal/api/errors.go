package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"boards/internal/board"
	"boards/internal/edit"
	"boards/internal/filter"
	"boards/internal/mutation"
	"boards/internal/projection"
	"boards/internal/store"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок ответа
const (
	ErrRequired         = "required"
	ErrTypeMismatch     = "type_mismatch"
	ErrNotFound         = "not_found"
	ErrReadOnly         = "readonly_field"
	ErrUnknownCondition = "unknown_condition"
	ErrInvalidInput     = "invalid_input"
	ErrConflict         = "conflict"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

func badRequest(c *gin.Context, errs ...FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
}

// writeError переводит ошибку домена в ответ.
func (s *Server) writeError(c *gin.Context, err error) {
	var ve *edit.ValueError
	var ce *filter.ConditionError
	switch {
	case errors.As(err, &ve):
		badRequest(c, ferr(ve.Code, ve.PropertyID, ve.Message))
	case errors.As(err, &ce):
		badRequest(c, ferr(ErrUnknownCondition, "filter", ce.Error()))
	case errors.Is(err, edit.ErrPropertyNotFound),
		errors.Is(err, edit.ErrCardNotFound),
		errors.Is(err, edit.ErrViewNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, projection.ErrBoardNotFound):
		c.JSON(http.StatusNotFound, gin.H{"errors": []FieldError{ferr(ErrNotFound, "", err.Error())}})
	case errors.Is(err, board.ErrInvalidInput):
		badRequest(c, ferr(ErrInvalidInput, "", err.Error()))
	case errors.Is(err, projection.ErrNotSynced),
		errors.Is(err, store.ErrAlreadyExists),
		errors.Is(err, mutation.ErrNothingToUndo),
		errors.Is(err, mutation.ErrNothingToRedo):
		c.JSON(http.StatusConflict, gin.H{"errors": []FieldError{ferr(ErrConflict, "", err.Error())}})
	default:
		s.logger.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
