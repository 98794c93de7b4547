package wire

import "errors"

// ErrParse is returned when a raw buffer cannot be split into a start-line
// and header block (no CRLFCRLF, or an empty start-line). spec.md §7:
// "ParseError ... Log and drop the connection."
var ErrParse = errors.New("wire: malformed message")

// ErrNotAResponse is spec.md §4.1's "NotAResponse" failure kind: the raw
// buffer does not begin with "HTTP", so it cannot be parsed as a response
// and must be treated as a raw continuation chunk instead.
var ErrNotAResponse = errors.New("wire: buffer is not an HTTP response")
