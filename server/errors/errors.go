// Package errors определяет ошибки приложения с HTTP статусом
// и отображение доменных ошибок диагностики на них.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"mesdiag/database"
	"mesdiag/datacontext"
	"mesdiag/decision"
	"mesdiag/instruction"
	"mesdiag/spc"
)

// AppError представляет ошибку приложения с HTTP статусом и контекстом
type AppError struct {
	Code    int    `json:"status_code"` // HTTP статус код
	Message string `json:"message"`     // Сообщение для пользователя
	Err     error  `json:"-"`           // Внутренняя ошибка для логов, не сериализуется
	Context string `json:"-"`           // Дополнительный контекст (функция, параметры)
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap возвращает вложенную ошибку для errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode возвращает HTTP статус код ошибки
func (e *AppError) StatusCode() int {
	return e.Code
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// NewNotFoundError создает ошибку 404 Not Found
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Err:     err,
	}
}

// NewValidationError создает ошибку 400 Bad Request
func NewValidationError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

// NewInternalError создает ошибку 500 Internal Server Error
// Для пользователя возвращается общее сообщение, детали только в логах
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Внутренняя ошибка сервера",
		Err:     errors.Join(errors.New(message), err),
	}
}

// NewNotImplementedError создает ошибку 501 Not Implemented
func NewNotImplementedError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusNotImplemented,
		Message: message,
		Err:     err,
	}
}

// FromDomain отображает доменные ошибки диагностики на AppError:
// ошибки валидации и недостатка данных — 400, неизвестные измерения и режимы — 400,
// нереализованный решающий модуль — 501, сбои хранилища — 500.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErr *datacontext.ValidationError
	if errors.As(err, &validationErr) {
		return NewValidationError(validationErr.Error(), err)
	}

	var confErr *datacontext.ConfigurationError
	if errors.As(err, &confErr) {
		return NewValidationError(confErr.Error(), err)
	}

	var engineConfErr *decision.ConfigurationError
	if errors.As(err, &engineConfErr) {
		return NewValidationError(engineConfErr.Error(), err)
	}

	var insufficientErr *spc.InsufficientDataError
	if errors.As(err, &insufficientErr) {
		return NewValidationError(insufficientErr.Error(), err)
	}

	var unavailableErr *decision.EngineUnavailableError
	if errors.As(err, &unavailableErr) {
		return NewNotImplementedError(unavailableErr.Error(), err)
	}

	var templateErr *instruction.TemplateError
	if errors.As(err, &templateErr) {
		return NewInternalError(templateErr.Error(), err)
	}

	var persistErr *database.PersistenceError
	if errors.As(err, &persistErr) {
		return NewInternalError("сбой хранилища", err)
	}

	return NewInternalError("необработанная ошибка", err)
}

// WrapError оборачивает существующую ошибку с контекстом.
// Если ошибка уже AppError, добавляет контекст. Иначе создает новую InternalError
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	return NewInternalError(message, err)
}
