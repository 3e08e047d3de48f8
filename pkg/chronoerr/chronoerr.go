// Package chronoerr defines the sentinel error kinds of chronodb's
// error handling design: corrupt on-disk keys, malformed identifiers,
// CAS precondition failures, and log policy mismatches. Callers use
// errors.Is against these sentinels rather than matching strings.
package chronoerr

import "errors"

var (
	// ErrCorruptIndex is returned when a key or value fails its length
	// or tag check on decode. Fatal to the calling operation; the KV
	// store is not automatically repaired.
	ErrCorruptIndex = errors.New("chronodb: corrupt index entry")

	// ErrMalformedID is returned when an identifier cannot be
	// canonicalized, e.g. a string of exactly the hex-digest width that
	// is not valid hex, or a value of an unsupported type. Strings of
	// any other length, hex-looking or not, are treated as keywords and
	// hashed rather than rejected.
	ErrMalformedID = errors.New("chronodb: malformed identifier")

	// ErrCasMismatch names a failed cas precondition. No code path
	// returns or attaches it: SubmitTx resolves before the precondition
	// is checked, and the indexer records a cas failure by writing no
	// index-3 entry, counting it in metrics.TxFailedTotal and publishing
	// a tx.failed event.
	ErrCasMismatch = errors.New("chronodb: cas precondition mismatch")

	// errMissingDocument is internal: a pending transaction's
	// referenced content-hash is neither present nor tombstoned yet.
	// It never escapes the indexer.
	errMissingDocument = errors.New("chronodb: referenced document not yet available")

	// ErrLogPolicyMismatch is fatal at startup: a subscribed topic's
	// cleanup/retention policy does not match what the protocol
	// requires.
	ErrLogPolicyMismatch = errors.New("chronodb: log topic policy mismatch")

	// ErrTransientLog wraps producer/consumer I/O errors from the log
	// clients. Neither client retries: the first failure is returned to
	// the caller, so SubmitTx fails on the first failed produce.
	ErrTransientLog = errors.New("chronodb: transient log error")
)

// ErrMissingDocument exposes the internal missing-document condition
// for tests that need to assert on it; production code paths never
// return it to a caller outside the indexer.
var ErrMissingDocument = errMissingDocument
