package wire

import "time"

// httpDateLayout is the wire format used throughout the proxy for Date,
// If-Modified-Since and Expires headers: "Sat, 30 Mar 2019 12:30:18 GMT".
const httpDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// HTTPDate is the "Time value" component from spec.md §2: it parses and
// serializes HTTP-date strings and supports the handful of comparisons the
// cache engine and connection handler need (">" and "add seconds").
type HTTPDate struct {
	t time.Time
}

// ParseHTTPDate parses an HTTP-date string such as a Date or
// If-Modified-Since header value.
func ParseHTTPDate(s string) (HTTPDate, error) {
	t, err := time.Parse(httpDateLayout, s)
	if err != nil {
		return HTTPDate{}, err
	}
	return HTTPDate{t: t}, nil
}

// Now returns the current instant, in GMT, as an HTTPDate.
func Now() HTTPDate {
	return HTTPDate{t: time.Now().UTC()}
}

// String renders the date in HTTP-date wire format.
func (d HTTPDate) String() string {
	return d.t.Format(httpDateLayout)
}

// After reports whether d is strictly later than other (the ">" operator
// from original_source/TimeComparator.py).
func (d HTTPDate) After(other HTTPDate) bool {
	return d.t.After(other.t)
}

// Add returns a new HTTPDate seconds later than d.
func (d HTTPDate) Add(seconds int) HTTPDate {
	return HTTPDate{t: d.t.Add(time.Duration(seconds) * time.Second)}
}

// Sub returns the duration elapsed from other to d.
func (d HTTPDate) Sub(other HTTPDate) time.Duration {
	return d.t.Sub(other.t)
}

// Time exposes the underlying time.Time, for callers (e.g. the cache index)
// that need to persist or compare it outside of this package.
func (d HTTPDate) Time() time.Time {
	return d.t
}

// FromTime builds an HTTPDate from a time.Time, normalizing to UTC.
func FromTime(t time.Time) HTTPDate {
	return HTTPDate{t: t.UTC()}
}

// IsZero reports whether d was never set.
func (d HTTPDate) IsZero() bool {
	return d.t.IsZero()
}
