package connect

import (
	"fmt"
	"strconv"
	"strings"
)

// contentRange is the parsed form of "Content-Range: items <first>-<last>/<total>".
type contentRange struct {
	First int
	Last  int
	Total int
}

func parseContentRange(header string) (contentRange, error) {
	header = strings.TrimSpace(header)
	rest, ok := strings.CutPrefix(header, "items ")
	if !ok {
		return contentRange{}, fmt.Errorf("invalid content-range %q", header)
	}
	span, total, ok := strings.Cut(rest, "/")
	if !ok {
		return contentRange{}, fmt.Errorf("invalid content-range %q", header)
	}
	var cr contentRange
	var err error
	if cr.Total, err = strconv.Atoi(strings.TrimSpace(total)); err != nil {
		return contentRange{}, fmt.Errorf("invalid content-range total %q: %w", total, err)
	}
	first, last, ok := strings.Cut(span, "-")
	if !ok {
		return contentRange{}, fmt.Errorf("invalid content-range %q", header)
	}
	if cr.First, err = strconv.Atoi(strings.TrimSpace(first)); err != nil {
		return contentRange{}, fmt.Errorf("invalid content-range start %q: %w", first, err)
	}
	if cr.Last, err = strconv.Atoi(strings.TrimSpace(last)); err != nil {
		return contentRange{}, fmt.Errorf("invalid content-range end %q: %w", last, err)
	}
	return cr, nil
}

func pageQuery(limit, offset int) string {
	return fmt.Sprintf("limit=%d&offset=%d", limit, offset)
}
