package types

import "errors"

// CheckoutError is the one typed error surface presentation code branches on.
// Code is stable; Message is human-readable; Data carries structured context
// such as the phase an execution failed in.
type CheckoutError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *CheckoutError) Error() string {
	return e.Message
}

// Error codes.
const (
	// ErrAPIError marks an external service that was unreachable or returned
	// a non-success status. Data carries the raw status and body when known.
	ErrAPIError = "API_ERROR"

	// ErrInsufficientFunds means every funding candidate was priced and none
	// closes the shortfall feasibly.
	ErrInsufficientFunds = "INSUFFICIENT_FUNDS"

	// ErrUnroutable means a shortfall exists but no candidate could even be
	// priced (missing token mapping, no liquidity, no enabled venue).
	ErrUnroutable = "UNROUTABLE"

	// ErrSanctionedAddress means risk screening flagged a participant.
	// Execution is refused unconditionally.
	ErrSanctionedAddress = "SANCTIONED_ADDRESS"

	// ErrExecuteTransactions wraps a submission or confirmation failure in
	// either execution phase. Data records which phase was reached so retry
	// logic knows whether approvals must be re-sent.
	ErrExecuteTransactions = "EXECUTE_TRANSACTIONS_ERROR"

	// ErrBridgeGasEstimate means the bridge fee or gas quote call failed.
	ErrBridgeGasEstimate = "BRIDGE_GAS_ESTIMATE_ERROR"
)

// NewCheckoutError builds a CheckoutError with the given code and message.
func NewCheckoutError(code, message string, data interface{}) *CheckoutError {
	return &CheckoutError{Code: code, Message: message, Data: data}
}

// AsCheckoutError unwraps err into a *CheckoutError if it is one.
func AsCheckoutError(err error) (*CheckoutError, bool) {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
