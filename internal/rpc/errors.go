package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidCredentials):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrorUnauthorized):
		return codes.PermissionDenied
	case errors.Is(err, common.ErrorNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, common.ErrInvalidInvite),
		errors.Is(err, common.ErrExpiredInvite),
		errors.Is(err, common.ErrLocked):
		return codes.FailedPrecondition
	case errors.Is(err, common.ErrCryptoFailure):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrUnavailable):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// ToStatus converts a service error into a gRPC status error carrying an
// ErrorInfo detail with the error code. Internal errors lose their message.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := grpcCode(err)
	msg := err.Error()
	if code == codes.Internal {
		msg = common.ErrorInternal.Error()
	}
	st := status.New(code, msg)
	if withDetails, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: common.Code(err),
		Domain: common.ErrorDomain,
	}); derr == nil {
		st = withDetails
	}
	return st.Err()
}

// remoteError keeps the server's message and unwraps to the sentinel.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }

// FromStatus converts a gRPC error back into a sentinel wrapped with the
// server's message.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == common.ErrorDomain {
			return &remoteError{msg: st.Message(), err: common.FromCode(info.GetReason())}
		}
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrUnavailable)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", common.ErrUnavailable, context.DeadlineExceeded)
	case codes.Canceled:
		return context.Canceled
	case codes.Unauthenticated:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrInvalidToken)
	case codes.PermissionDenied:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorUnauthorized)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorNotFound)
	default:
		return fmt.Errorf("%s: %w", st.Message(), common.ErrorInternal)
	}
}
