package errdef

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnknown       Code = ""
	CodeValidation    Code = "validation"
	CodeDuplicateName Code = "duplicate-name"
	CodeCyclicMove    Code = "cyclic-move"
	CodeNotFound      Code = "not-found"
	CodeInvalidFormat Code = "invalid-format"
	CodeStorage       Code = "storage"
	CodeFilesystem    Code = "filesystem"
	CodeParse         Code = "parse"
	CodeHTTP          Code = "http"
)

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, format string, args ...interface{}) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf walks the error chain and returns the first attached code.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// Message returns the outermost annotated message without the wrapped cause.
func Message(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Msg
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
