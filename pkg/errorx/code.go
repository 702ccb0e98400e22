package errorx

import "strconv"

type Code int

func (c Code) String() string {
	return strconv.Itoa(int(c))
}

var Unknown = Error{Code: 100000, Message: "Request failed"}

const (
	// Common codes
	BadRequest       Code = 100001
	BadResponse      Code = 100002
	PermissionDenied Code = 100003
	NotFound         Code = 100004
	Unauthenticated  Code = 100005
	AlreadyExists    Code = 100006
	Internal         Code = 100007
	Unavailable      Code = 100008
	NotImplemented   Code = 100009
	TooManyRequests  Code = 100010

	// Inventory and award codes
	Exhausted       Code = 200001
	Conflict        Code = 200002
	ChainFailed     Code = 200003
	ReconcileFailed Code = 200004
	ContextClosed   Code = 200005

	// Marketplace codes
	StaleState         Code = 300001
	ListingUnavailable Code = 300002
)
