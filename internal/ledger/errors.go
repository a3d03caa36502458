package ledger

import (
	"fmt"

	"github.com/Veraticus/fintrack/internal/common"
)

// Ledger errors. Each wraps one of the common error kinds.
var (
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be positive", common.ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: date must be YYYY-MM-DD", common.ErrValidation)
	ErrDescriptionTooLong  = fmt.Errorf("%w: description too long", common.ErrLimitExceeded)
	ErrDailyLimitExceeded  = fmt.Errorf("%w: daily spending limit exceeded", common.ErrLimitExceeded)
	ErrCancelled           = fmt.Errorf("%w: transaction cancelled", common.ErrValidation)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction not found", common.ErrValidation)
	ErrCorruptRecord       = fmt.Errorf("%w: corrupt stored transaction", common.ErrPersistence)
)
