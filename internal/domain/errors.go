package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound возвращается, когда запись не найдена.
var ErrNotFound = errors.New("not found")

// ErrorKind классифицирует сбои пайплайна.
type ErrorKind string

const (
	// KindUpstreamUnavailable - источник данных или LLM ответили ошибкой или пустотой.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindMalformedOutput - ответ LLM не удалось разобрать даже после очистки.
	KindMalformedOutput ErrorKind = "malformed_output"
	// KindDeliveryFailed - не удалось отправить письмо или сохранить документ.
	KindDeliveryFailed ErrorKind = "delivery_failed"
	// KindScheduleMissing - у лиги нет расписания.
	KindScheduleMissing ErrorKind = "schedule_missing"
	// KindInternal - всё остальное.
	KindInternal ErrorKind = "internal"
)

// Error несёт вид сбоя и операцию, на которой он произошёл.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E оборачивает err в Error указанного вида.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf достаёт вид сбоя из цепочки ошибок.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
