package cacheengine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/kjhall/cacheproxy/internal/wire"
)

// envelope is the wire format used to write a multi-chunk response through
// hotcache.Cache, whose Set/Get only deal in opaque byte streams: an
// 8-byte expiry (unix seconds, 0 meaning "unknown"), followed by each
// chunk as a 4-byte length prefix and its bytes. This is strictly an
// accelerator format — the authoritative encoding lives in filestore and
// the index document, never in hotcache.
func encodeEnvelope(exp expiry, chunks [][]byte) []byte {
	var buf bytes.Buffer
	var expSeconds int64
	if exp.known {
		expSeconds = exp.at.Time().Unix()
	}
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], uint64(expSeconds))
	buf.Write(head[:])
	for _, c := range chunks {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c)))
		buf.Write(lenBuf[:])
		buf.Write(c)
	}
	return buf.Bytes()
}

var errMalformedEnvelope = errors.New("cacheengine: malformed hotcache envelope")

func decodeEnvelope(r io.Reader) (expiry, [][]byte, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return expiry{}, nil, errMalformedEnvelope
	}
	expSeconds := int64(binary.BigEndian.Uint64(head[:]))
	exp := unknownExpiry()
	if expSeconds != 0 {
		exp = absoluteExpiry(wire.FromTime(time.Unix(expSeconds, 0)))
	}

	var chunks [][]byte
	for {
		var lenBuf [4]byte
		_, err := io.ReadFull(r, lenBuf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return expiry{}, nil, errMalformedEnvelope
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return expiry{}, nil, errMalformedEnvelope
		}
		chunks = append(chunks, chunk)
	}
	return exp, chunks, nil
}
