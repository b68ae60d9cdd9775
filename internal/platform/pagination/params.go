package pagination

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// DefaultMaxPageSize caps pageSize when Options does not.
	DefaultMaxPageSize = 100

	maxStatusFilters = 10
)

// MaxPageNumber bounds pageNumber so the offset (pageNumber-1)*pageSize fits in an int for
// every accepted pageSize.
const MaxPageNumber = math.MaxInt32

// Params holds the page-number pagination and status filter values of a list request.
type Params struct {
	PageNumber int
	PageSize   int
	Statuses   []string
}

// Options control how Parse behaves for a given handler.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

var (
	ErrInvalidPageNumber = errors.New("pagination: invalid pageNumber")
	ErrInvalidPageSize   = errors.New("pagination: invalid pageSize")
	ErrInvalidStatus     = errors.New("pagination: invalid status filter")
)

// FromRequest parses the supported query parameters from r.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse reads pageNumber (1-based), pageSize (clamped to the maximum) and status. The status
// filter accepts repeated parameters as well as comma separated values.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	pageNumber := 1
	if raw := strings.TrimSpace(values.Get("pageNumber")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageNumber)
		}
		if n < 1 {
			return Params{}, fmt.Errorf("%w: must be at least 1", ErrInvalidPageNumber)
		}
		if n > MaxPageNumber {
			return Params{}, fmt.Errorf("%w: must be at most %d", ErrInvalidPageNumber, MaxPageNumber)
		}
		pageNumber = n
	}

	pageSize, err := parsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}

	statuses, err := parseStatuses(values["status"])
	if err != nil {
		return Params{}, err
	}

	return Params{PageNumber: pageNumber, PageSize: pageSize, Statuses: statuses}, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}

func parseStatuses(raw []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			status := strings.ToLower(strings.TrimSpace(part))
			if status == "" {
				continue
			}
			if _, dup := seen[status]; dup {
				continue
			}
			seen[status] = struct{}{}
			out = append(out, status)
		}
	}
	if len(out) > maxStatusFilters {
		return nil, fmt.Errorf("%w: at most %d values", ErrInvalidStatus, maxStatusFilters)
	}
	return out, nil
}
