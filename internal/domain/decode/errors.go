package decode

import "fmt"

// Kind classifies why a file could not be decoded.
type Kind int

const (
	// KindHeader marks a truncated or malformed file header.
	KindHeader Kind = iota
	// KindIntegrity marks a checksum mismatch over the record stream.
	KindIntegrity
	// KindParse marks a structural violation inside the message stream.
	KindParse
	// KindNotActivity marks a valid FIT file that is not an activity
	// recording (e.g. a settings or workout file).
	KindNotActivity
	// KindNoSession marks an activity file without a session summary.
	KindNoSession
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindIntegrity:
		return "integrity"
	case KindParse:
		return "parse"
	case KindNotActivity:
		return "not_activity"
	case KindNoSession:
		return "no_session"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed decode failure. It is fatal to the file's
// ingestion and never produces a partial DecodedActivity.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode: %s", e.Kind)
	}
	return fmt.Sprintf("decode: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
