package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindTemporal    Kind = "temporal"
	KindComposition Kind = "composition"
	KindPricing     Kind = "pricing"
	KindConsistency Kind = "consistency"
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindInternal    Kind = "internal"
)

// Error is a user-facing failure carrying a stable numeric code. Two errors
// are equal under errors.Is when their codes match.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newError(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	DoesNotExist          = newError(KindNotFound, 602, "object does not exist")
	MaxIngredientsExceed  = newError(KindComposition, 603, "maximum amount of ingredients in group exceeded")
	MinIngredientsUnmet   = newError(KindComposition, 604, "minimum amount of ingredients in group not met")
	IngredientLinking     = newError(KindComposition, 605, "ingredient not linked to food or store")
	InvalidAmount         = newError(KindComposition, 606, "amount invalid for food type")
	CostCheckFailed       = newError(KindPricing, 700, "submitted total does not match computed total")
	LeadTimeNotMet        = newError(KindTemporal, 701, "store lead time not met")
	PastOrderDenied       = newError(KindTemporal, 702, "receipt lies in the past")
	StoreClosed           = newError(KindTemporal, 704, "store is closed at requested time")
	PreorderDaysNotMet    = newError(KindTemporal, 706, "food requires more days of preorder")
	OnlinePaymentDisabled = newError(KindConsistency, 712, "online payment method not enabled for store")
	OnlinePaymentRequired = newError(KindConsistency, 716, "group requires online payment")
	CashDisabled          = newError(KindConsistency, 717, "cash payment not enabled for store")
	NoPaymentLink         = newError(KindConsistency, 718, "no payment link for store")
	PaymentLinkPending    = newError(KindConsistency, 719, "payment link not confirmed")
	EmptyOrder            = newError(KindConsistency, 720, "order has no line items")
	InvalidTransition     = newError(KindConsistency, 721, "invalid status transition")
	NoDeliveryToAddress   = newError(KindConsistency, 722, "store does not deliver to address")
	CrossStoreLinking     = newError(KindConsistency, 723, "food does not belong to order store")
	NotGroupMember        = newError(KindForbidden, 724, "user is not a member of group")
	InvalidRequest        = newError(KindValidation, 400, "invalid request")
	Forbidden             = newError(KindForbidden, 403, "not allowed")
	Internal              = newError(KindInternal, 500, "internal invariant violated")
)

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsUserFacing(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	return e.Kind != KindInternal
}
