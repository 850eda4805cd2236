package database

import "fmt"

// PersistenceError ошибка записи в хранилище.
// Вся пачка указаний откатывается целиком; вызывающая сторона может повторить запись.
type PersistenceError struct {
	Op  string // операция, на которой произошел сбой
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ошибка записи в хранилище (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
