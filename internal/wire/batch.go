// Package wire implements the binary frames exchanged with the content
// store: the batch upload frame and the MIME-tagged media envelope.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

const (
	Magic         uint32 = 0xDAAB0000
	FormatVersion uint16 = 1

	MaxNonceLen = 64
	MaxIDLen    = 256

	headerLen = 6
)

// Record is one logical write in a batch upload.
type Record struct {
	Nonce           []byte
	ObjectID        []byte
	ExpectedVersion uint64
	Blob            []byte
}

// EncodeBatch serialises records into a batch upload frame.
func EncodeBatch(records []Record) ([]byte, error) {
	size := headerLen
	for _, r := range records {
		if len(r.Nonce) > MaxNonceLen {
			return nil, common.MalformedError(fmt.Sprintf("nonce too long: %d", len(r.Nonce)))
		}
		if len(r.ObjectID) == 0 || len(r.ObjectID) > MaxIDLen {
			return nil, common.MalformedError(fmt.Sprintf("invalid id length: %d", len(r.ObjectID)))
		}
		size += 2 + len(r.Nonce) + 2 + len(r.ObjectID) + 8 + 8 + len(r.Blob)
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint16(buf, FormatVersion)

	for _, r := range records {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Nonce)))
		buf = append(buf, r.Nonce...)
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.ObjectID)))
		buf = append(buf, r.ObjectID...)
		buf = binary.BigEndian.AppendUint64(buf, r.ExpectedVersion)
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(r.Blob)))
		buf = append(buf, r.Blob...)
	}

	return buf, nil
}

// DecodeBatch parses a full batch frame. Any structural problem is reported
// as common.ErrMalformed and no records are returned, so callers never act
// on a partially parsed frame.
func DecodeBatch(data []byte) ([]Record, error) {
	if len(data) < headerLen {
		return nil, common.MalformedError("too short")
	}
	if binary.BigEndian.Uint32(data[0:4]) != Magic {
		return nil, common.MalformedError("invalid magic bytes")
	}
	if v := binary.BigEndian.Uint16(data[4:6]); v != FormatVersion {
		return nil, common.MalformedError(fmt.Sprintf("unsupported version: %d", v))
	}

	r := reader{buf: data, off: headerLen}
	var records []Record

	for r.remaining() > 0 {
		var rec Record

		nonceLen, ok := r.uint16()
		if !ok {
			return nil, common.MalformedError("truncated nonce length")
		}
		if nonceLen > MaxNonceLen {
			return nil, common.MalformedError(fmt.Sprintf("nonce too long: %d", nonceLen))
		}
		if rec.Nonce, ok = r.bytes(uint64(nonceLen)); !ok {
			return nil, common.MalformedError("truncated nonce")
		}

		idLen, ok := r.uint16()
		if !ok {
			return nil, common.MalformedError("truncated id length")
		}
		if idLen == 0 || idLen > MaxIDLen {
			return nil, common.MalformedError(fmt.Sprintf("invalid id length: %d", idLen))
		}
		if rec.ObjectID, ok = r.bytes(uint64(idLen)); !ok {
			return nil, common.MalformedError("truncated id")
		}

		if rec.ExpectedVersion, ok = r.uint64(); !ok {
			return nil, common.MalformedError("truncated expected version")
		}

		blobLen, ok := r.uint64()
		if !ok {
			return nil, common.MalformedError("truncated blob length")
		}
		if rec.Blob, ok = r.bytes(blobLen); !ok {
			return nil, common.MalformedError("truncated blob")
		}

		records = append(records, rec)
	}

	return records, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) uint16() (uint16, bool) {
	if r.remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, true
}

func (r *reader) uint64() (uint64, bool) {
	if r.remaining() < 8 {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, true
}

// bytes returns a copy so records never alias the request buffer.
func (r *reader) bytes(n uint64) ([]byte, bool) {
	if n > uint64(r.remaining()) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, true
}
