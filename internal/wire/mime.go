package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

// EncodeBlobWithMime prefixes data with its MIME type: u16 length, type bytes, data.
func EncodeBlobWithMime(mime string, data []byte) ([]byte, error) {
	if len(mime) > math.MaxUint16 {
		return nil, common.MalformedError(fmt.Sprintf("mime type too long: %d", len(mime)))
	}

	out := make([]byte, 0, 2+len(mime)+len(data))
	out = binary.BigEndian.AppendUint16(out, uint16(len(mime)))
	out = append(out, mime...)
	return append(out, data...), nil
}

// DecodeBlobWithMime splits an envelope produced by EncodeBlobWithMime.
// The returned data aliases blob.
func DecodeBlobWithMime(blob []byte) (mime string, data []byte, err error) {
	if len(blob) < 2 {
		return "", nil, common.MalformedError("truncated mime length")
	}
	n := int(binary.BigEndian.Uint16(blob))
	if len(blob) < 2+n {
		return "", nil, common.MalformedError("truncated mime type")
	}
	return string(blob[2 : 2+n]), blob[2+n:], nil
}
