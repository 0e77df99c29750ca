package domain

import "errors"

var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrInvalidState    = errors.New("operation not allowed in current auction status")
	ErrBidTooLow       = errors.New("bid amount is too low")
	ErrConflict        = errors.New("concurrent modification of auction, retry")
	ErrTimeout         = errors.New("auction operation timed out")
	ErrInvalidAuction  = errors.New("invalid auction parameters")
	ErrInvalidBid      = errors.New("invalid bid")
	ErrUnknownBidder   = errors.New("unknown bidder")
	ErrCorruptEventLog = errors.New("auction event log cannot be replayed")
)

// Retryable reports whether the caller may repeat the operation with the same parameters.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTimeout)
}
