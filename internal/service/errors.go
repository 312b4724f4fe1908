package service

import (
	"errors"
	"fmt"
)

// Messages sent to the notifier. They are user-facing copy and must not change.
const (
	MsgOutOfStock   = "requested quantity unavailable in stock"
	MsgAddFailed    = "error adding product"
	MsgRemoveFailed = "error removing product"
	MsgUpdateFailed = "error changing product quantity"
)

// Kind classifies why a cart operation did not mutate the cart.
type Kind int

const (
	KindNone Kind = iota
	KindOutOfStock
	KindNotFound
	KindCollaboratorFailure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOutOfStock:
		return "out_of_stock"
	case KindNotFound:
		return "not_found"
	case KindCollaboratorFailure:
		return "collaborator_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by CartStore operations that were rejected. Message is
// the text that was sent to the notifier.
type Error struct {
	Op        string
	Kind      Kind
	ProductID int64
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s product %d: %s: %v", e.Op, e.ProductID, e.Message, e.Err)
	}
	return fmt.Sprintf("%s product %d: %s", e.Op, e.ProductID, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, KindNone for nil and
// KindCollaboratorFailure for anything that is not an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCollaboratorFailure
}
