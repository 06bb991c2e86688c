package service

import (
	"errors"
	"fmt"
)

// Code — класс ошибки, видимый клиенту (HTTP-статус и поле code в ответе).
type Code string

const (
	CodeInvalidArgument Code = "invalid_argument"
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeGone            Code = "gone"
	CodeRateLimited     Code = "rate_limited"
	CodeInternal        Code = "internal"
)

// Reason уточняет CodeForbidden.
type Reason string

const (
	ReasonNotMember Reason = "not_member"
	ReasonNotOwner  Reason = "not_owner"
	ReasonLeft      Reason = "left"
)

type Error struct {
	Code    Code
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrRoomNotFound       = &Error{Code: CodeNotFound, Message: "room not found"}
	ErrRoomDeleted        = &Error{Code: CodeGone, Message: "room deleted"}
	ErrRoomAlreadyDeleted = &Error{Code: CodeConflict, Message: "room already deleted"}
	ErrNotMember          = &Error{Code: CodeForbidden, Reason: ReasonNotMember, Message: "not a member of the room"}
	ErrNotOwner           = &Error{Code: CodeForbidden, Reason: ReasonNotOwner, Message: "only the room owner can do this"}
	ErrMemberLeft         = &Error{Code: CodeForbidden, Reason: ReasonLeft, Message: "membership has ended"}
	ErrMemberNotFound     = &Error{Code: CodeNotFound, Message: "member not found"}
	ErrCursorNotFound     = &Error{Code: CodeNotFound, Message: "cursor message not found"}
	ErrMessageNotFound    = &Error{Code: CodeNotFound, Message: "message not found"}
	ErrNotSender          = &Error{Code: CodeForbidden, Reason: ReasonNotOwner, Message: "only the sender can delete a message"}
)

func invalidArgument(msg string) error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

// CodeOf возвращает класс ошибки; всё, что не *Error, считается внутренней ошибкой.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// PublicMessage — текст ошибки для клиента; детали внутренних ошибок не раскрываются.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
