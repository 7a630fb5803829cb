package service

import "errors"

// ErrorKind 错误分类，HTTP 层据此映射状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindInvalidState
	KindInvalidInput
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindInvalidState:
		return "invalid-state"
	case KindInvalidInput:
		return "invalid-input"
	case KindForbidden:
		return "forbidden"
	}
	return "internal"
}

// Error 面向调用方的业务错误，Code 与论坛前端使用的错误码一致
type Error struct {
	Kind ErrorKind
	Code string
}

func (e *Error) Error() string { return e.Code }

var (
	ErrNoTopic                = &Error{Kind: KindNotFound, Code: "no-topic"}
	ErrNoCategory             = &Error{Kind: KindNotFound, Code: "no-category"}
	ErrCantPinScheduled       = &Error{Kind: KindInvalidState, Code: "cant-pin-scheduled"}
	ErrCantExpireScheduled    = &Error{Kind: KindInvalidState, Code: "cant-expire-scheduled"}
	ErrTopicAlreadyDeleted    = &Error{Kind: KindInvalidState, Code: "topic-already-deleted"}
	ErrTopicAlreadyRestored   = &Error{Kind: KindInvalidState, Code: "topic-already-restored"}
	ErrCantMoveToSameCategory = &Error{Kind: KindInvalidState, Code: "cant-move-topic-to-same-category"}
	// ErrScheduledTopic 定时主题不能删除/恢复
	ErrScheduledTopic = &Error{Kind: KindInvalidState, Code: "invalid-data"}
	// ErrNotPinned 重排一个未置顶的主题
	ErrNotPinned    = &Error{Kind: KindInvalidState, Code: "invalid-data"}
	ErrInvalidData  = &Error{Kind: KindInvalidInput, Code: "invalid-data"}
	ErrNoPrivileges = &Error{Kind: KindForbidden, Code: "no-privileges"}
)

// KindOf 非 *Error 一律视为内部错误
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
