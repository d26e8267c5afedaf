// Package mediaerr defines the error kinds surfaced by the download pipeline.
package mediaerr

import (
	"errors"
	"strings"
)

// Kinds. Match them with errors.Is.
var (
	ErrResolution        = errors.New("resolution failed")
	ErrFormatUnavailable = errors.New("format unavailable")
	ErrConversion        = errors.New("conversion failed")
	ErrStorage           = errors.New("storage failure")
	ErrClientDisconnect  = errors.New("client disconnected")
)

const maxDetail = 2048

// Error attaches a kind and an operation name to an underlying cause.
// Detail carries subprocess diagnostics (stderr tail) when available.
type Error struct {
	Kind   error
	Op     string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newErr(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Resolution(op string, err error) error        { return newErr(ErrResolution, op, err) }
func FormatUnavailable(op string, err error) error { return newErr(ErrFormatUnavailable, op, err) }
func Storage(op string, err error) error           { return newErr(ErrStorage, op, err) }
func ClientDisconnect(op string, err error) error  { return newErr(ErrClientDisconnect, op, err) }

// Conversion builds a conversion error carrying the tail of the transcoder's stderr.
func Conversion(op string, err error, stderr []byte) error {
	e := newErr(ErrConversion, op, err)
	e.Detail = Tail(stderr, maxDetail)
	return e
}

// Tail returns the last n bytes of b as trimmed text.
func Tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "…" + s[len(s)-n:]
	}
	return s
}

// Typed reports whether err already carries one of the kinds above.
func Typed(err error) bool {
	return KindOf(err) != nil
}

// KindOf returns the first kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrClientDisconnect, ErrConversion, ErrFormatUnavailable, ErrStorage, ErrResolution} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
