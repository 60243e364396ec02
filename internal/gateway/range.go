package gateway

import (
	"fmt"
	"strconv"
	"strings"
)

// byteRange is a single, fully-resolved inclusive byte range.
type byteRange struct {
	start  int64
	length int64
}

// parseRange parses an HTTP Range header of the form "bytes=start-end",
// "bytes=start-", or "bytes=-suffixLength", against a file of the given
// size. Only a single range is supported -- a header naming more than one
// ("bytes=0-10,20-30") is rejected, mirroring HttpRange::parse's
// "only 1 range for now" restriction in custom_uri.rs.
func parseRange(header string, fileSize int64) (*byteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("error decoding range header")
	}
	spec := strings.TrimPrefix(header, prefix)

	if strings.Contains(spec, ",") {
		return nil, fmt.Errorf("multiple ranges are not supported")
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, fmt.Errorf("error decoding range header")
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	var start, end int64
	switch {
	case startStr == "" && endStr == "":
		return nil, fmt.Errorf("error decoding range header")

	case startStr == "":
		// Suffix range: last N bytes.
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return nil, fmt.Errorf("error decoding range header")
		}
		if suffix > fileSize {
			suffix = fileSize
		}
		start = fileSize - suffix
		end = fileSize - 1

	case endStr == "":
		s, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || s < 0 {
			return nil, fmt.Errorf("error decoding range header")
		}
		start = s
		end = fileSize - 1

	default:
		s, err1 := strconv.ParseInt(startStr, 10, 64)
		e, err2 := strconv.ParseInt(endStr, 10, 64)
		if err1 != nil || err2 != nil || s < 0 || e < s {
			return nil, fmt.Errorf("error decoding range header")
		}
		start, end = s, e
	}

	if start >= fileSize || fileSize == 0 {
		return nil, fmt.Errorf("range start out of bounds")
	}
	if end >= fileSize {
		end = fileSize - 1
	}

	return &byteRange{start: start, length: end - start + 1}, nil
}
