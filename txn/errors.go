package txn

import "errors"

// ErrInvalidMode is returned by NewTxnProcessor for a Mode outside the
// seven defined constants.
var ErrInvalidMode = errors.New("txn: invalid mode")

// ErrClosed is returned by NewTxnRequest once the processor has been
// closed.
var ErrClosed = errors.New("txn: processor closed")
