package netx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/feedkeeper/internal/api"
	"github.com/dmitrijs2005/feedkeeper/internal/codec"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

const missingPrefix = "Missing objectIds: "

// DecodeError turns an error status and its CBOR body into the matching
// typed error from package common.
func DecodeError(status int, body []byte) error {
	var eb api.ErrorBody
	_ = codec.Unmarshal(body, &eb)

	switch status {
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusForbidden:
		if eb.ObjectID != "" {
			return &common.ForbiddenError{ObjectID: eb.ObjectID}
		}
		return fmt.Errorf("%w: %s", common.ErrForbidden, eb.Error)
	case http.StatusPreconditionFailed:
		return &common.StaleError{ObjectID: eb.ObjectID, Version: eb.Version}
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return common.MalformedError(eb.Error)
	case http.StatusNotFound:
		if ids, ok := strings.CutPrefix(eb.Error, missingPrefix); ok {
			return &common.MissingError{ObjectIDs: strings.Split(ids, ",")}
		}
		return fmt.Errorf("%w: %s", common.ErrorNotFound, eb.Error)
	}
	if status >= 500 {
		return fmt.Errorf("%w: status %d", common.ErrorInternal, status)
	}
	return fmt.Errorf("unexpected status %d", status)
}
