package domain

import "errors"

// Failure taxonomy shared by sources, stores and the cycle orchestrator.
// Adapters wrap these sentinels with fmt.Errorf("%w: ...") so callers can
// classify with errors.Is without depending on adapter packages.
var (
	// ErrSourceUnavailable covers network failures, timeouts and 5xx
	// responses. Retryable.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceRejected covers anti-bot rejections (401/403/429) and
	// invalid-symbol 4xx responses. Rejections are retried after a
	// session refresh; invalid symbols are permanent.
	ErrSourceRejected = errors.New("source rejected request")

	// ErrSourceMalformed marks a response whose schema does not match
	// the adapter's expectation, including empty-looking bodies served
	// by a block page. Non-retryable.
	ErrSourceMalformed = errors.New("source response malformed")

	// ErrDeliveryFailed marks a messaging sink failure. The filing stays
	// unseen and is retried on the next cycle.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrStateCorrupt is returned when persisted state exists but cannot
	// be parsed. It must surface loudly instead of resetting to empty.
	ErrStateCorrupt = errors.New("persisted state corrupt")

	// ErrStorageFailure marks an unreadable or unwritable persistence
	// layer. Fatal for the whole cycle.
	ErrStorageFailure = errors.New("storage failure")
)

// SourceError reports whether err belongs to the per-symbol source
// taxonomy, as opposed to a storage failure that must abort the cycle.
func SourceError(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrSourceRejected) ||
		errors.Is(err, ErrSourceMalformed)
}
