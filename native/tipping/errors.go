package tipping

import "errors"

var (
	ErrAmountTooLow         = errors.New("tipping: amount too low")
	ErrAmountMismatch       = errors.New("tipping: attached value does not match amount")
	ErrAmountOutOfRange     = errors.New("tipping: amount exceeds 96 bits")
	ErrArrayLengthMismatch  = errors.New("tipping: array length mismatch")
	ErrFeePercentOutOfRange = errors.New("tipping: fee percent out of range")
	ErrUnauthorized         = errors.New("tipping: unauthorized")
	ErrTransferFailed       = errors.New("tipping: transfer failed")
	ErrTotalOverflow        = errors.New("tipping: total overflows 256 bits")
	ErrAlreadyInitialized   = errors.New("tipping: already initialized")
	ErrNotInitialized       = errors.New("tipping: not initialized")

	errNilState = errors.New("tipping engine: state not configured")
	errNilBank  = errors.New("tipping engine: bank not configured")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrAmountTooLow, "AmountTooLow"},
	{ErrAmountMismatch, "AmountMismatch"},
	{ErrAmountOutOfRange, "AmountOutOfRange"},
	{ErrArrayLengthMismatch, "ArrayLengthMismatch"},
	{ErrFeePercentOutOfRange, "FeePercentOutOfRange"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrTotalOverflow, "TotalOverflow"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrNotInitialized, "NotInitialized"},
}

// Reason returns the identifying failure name for err, or the empty string when
// err is not a ledger validation failure.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range reasons {
		if errors.Is(err, entry.err) {
			return entry.reason
		}
	}
	return ""
}

// ErrorForReason returns the sentinel identified by reason, or nil when the
// reason is unknown. It is the inverse of Reason for errors that crossed a
// process boundary.
func ErrorForReason(reason string) error {
	for _, entry := range reasons {
		if entry.reason == reason {
			return entry.err
		}
	}
	return nil
}
