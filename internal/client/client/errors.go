package client

import (
	"fmt"

	"github.com/dmitrijs2005/vaultsync/internal/common"
)

var (
	// ErrNoAccount is returned when the App is logged out.
	ErrNoAccount = fmt.Errorf("no account: %w", common.ErrorNotFound)
	// ErrLocalDataNotAvailable is returned by offline login when this
	// device has no replica of the account.
	ErrLocalDataNotAvailable = fmt.Errorf("local data unavailable: %w", common.ErrUnavailable)
)
