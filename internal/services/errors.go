package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// NotInitializedError is returned when the gateway or the synchronizer is
// used before setup completed.
type NotInitializedError struct {
	Reason string
}

func (e *NotInitializedError) Error() string {
	return "not initialized: " + e.Reason
}

// ValidationError is a local precondition failure. No remote call was made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// RemoteRejectionError means the chain refused a submitted call. Reason is
// safe to show to users; Cause keeps the node's error for logs.
type RemoteRejectionError struct {
	Reason string
	Cause  error
}

func (e *RemoteRejectionError) Error() string {
	return e.Reason
}

func (e *RemoteRejectionError) Unwrap() error {
	return e.Cause
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bet %s not found", e.ID)
}

const (
	rpcCodeUserRejected = 4001
	rpcCodeServerError  = -32000
)

// classifyRemoteError maps a gateway failure onto the error taxonomy.
// Errors that are already classified pass through unchanged.
func classifyRemoteError(err error) error {
	if err == nil {
		return nil
	}

	var (
		notInit    *NotInitializedError
		validation *ValidationError
		rejection  *RemoteRejectionError
		notFound   *NotFoundError
	)
	if errors.As(err, &notInit) || errors.As(err, &validation) ||
		errors.As(err, &rejection) || errors.As(err, &notFound) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeUserRejected:
			return &RemoteRejectionError{Reason: "transaction rejected by user", Cause: err}
		case rpcCodeServerError:
			return &RemoteRejectionError{Reason: "insufficient funds for gas", Cause: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user denied"), strings.Contains(msg, "request denied"):
		return &RemoteRejectionError{Reason: "transaction rejected by user", Cause: err}
	case strings.Contains(msg, "insufficient funds"):
		return &RemoteRejectionError{Reason: "insufficient funds to complete the transaction", Cause: err}
	case strings.Contains(msg, "execution reverted"):
		return &RemoteRejectionError{Reason: "transaction reverted by the betting contract", Cause: err}
	}

	return fmt.Errorf("remote call failed: %w", err)
}
