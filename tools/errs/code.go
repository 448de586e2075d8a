package errs

// Error codes for the cursor core. 1xxx is construction/configuration,
// 2xxx is planning-cycle failures, 3xxx is transport.
const (
	InvalidConfigurationCode = 1001
	CeilingUnavailableCode   = 2001
	NonMonotonicCeilingCode  = 2002
	DataLossCode             = 2003
	TransportFailureCode     = 3001
)

var (
	// ErrInvalidConfiguration is fatal at construction and never retried.
	ErrInvalidConfiguration = NewCodeError(InvalidConfigurationCode, "invalid configuration")

	// ErrCeilingUnavailable aborts the planning cycle; the host must stop
	// the query rather than spin on a stalled cursor.
	ErrCeilingUnavailable = NewCodeError(CeilingUnavailableCode, "high water mark unavailable")

	// ErrNonMonotonicCeiling means the broker reported a position behind the
	// committed ledger: offset reset or broker-side corruption. Never healed.
	ErrNonMonotonicCeiling = NewCodeError(NonMonotonicCeilingCode, "ceiling behind committed offset")

	// ErrDataLoss is raised by the reader when records between two ledgers
	// are no longer retrievable and fail-on-data-loss is set.
	ErrDataLoss = NewCodeError(DataLossCode, "offset gap detected")

	// ErrTransport covers broker network/auth failures before they are
	// escalated to ErrCeilingUnavailable.
	ErrTransport = NewCodeError(TransportFailureCode, "broker transport failure")
)
