package pagination

import (
	"errors"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageNumber != 1 {
		t.Fatalf("expected page 1, got %d", params.PageNumber)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, params.PageSize)
	}
	if params.Statuses != nil {
		t.Fatalf("expected no status filter, got %#v", params.Statuses)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	values := url.Values{}
	values.Set("pageSize", "30")

	params, err := Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 30 {
		t.Fatalf("expected page size 30 got %d", params.PageSize)
	}

	values.Set("pageSize", "400")
	params, err = Parse(values, opts)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected page size clamped to %d got %d", opts.MaxPageSize, params.PageSize)
	}
}

func TestParseDefaultClampedToMax(t *testing.T) {
	params, err := Parse(url.Values{}, Options{DefaultPageSize: 80, MaxPageSize: 50})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 50 {
		t.Fatalf("expected 50, got %d", params.PageSize)
	}
}

func TestParseInvalidValues(t *testing.T) {
	cases := []struct {
		key, value string
		want       error
	}{
		{"pageSize", "abc", ErrInvalidPageSize},
		{"pageSize", "0", ErrInvalidPageSize},
		{"pageNumber", "-1", ErrInvalidPageNumber},
		{"pageNumber", "0", ErrInvalidPageNumber},
		{"pageNumber", "two", ErrInvalidPageNumber},
		{"pageNumber", "2147483648", ErrInvalidPageNumber},
		{"pageNumber", "461168601842738792", ErrInvalidPageNumber},
	}
	for _, tc := range cases {
		values := url.Values{}
		values.Set(tc.key, tc.value)
		if _, err := Parse(values, Options{}); !errors.Is(err, tc.want) {
			t.Fatalf("%s=%s: expected %v, got %v", tc.key, tc.value, tc.want, err)
		}
	}
}

func TestParseAcceptsLargestPageNumber(t *testing.T) {
	values := url.Values{}
	values.Set("pageNumber", "2147483647")
	values.Set("pageSize", "1000")

	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageNumber != MaxPageNumber {
		t.Fatalf("expected page %d got %d", MaxPageNumber, params.PageNumber)
	}
	offset := int64(params.PageNumber-1) * int64(params.PageSize)
	if offset < 0 {
		t.Fatalf("offset overflowed: %d", offset)
	}
}

func TestParseStatuses(t *testing.T) {
	values := url.Values{}
	values.Add("status", "Confirmed, shipped")
	values.Add("status", "confirmed")
	values.Add("status", " ")

	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if want := []string{"confirmed", "shipped"}; !reflect.DeepEqual(params.Statuses, want) {
		t.Fatalf("expected %v, got %v", want, params.Statuses)
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/orders?pageNumber=3&pageSize=5", nil)
	params, err := FromRequest(req, Options{})
	if err != nil {
		t.Fatalf("FromRequest returned error: %v", err)
	}
	if params.PageNumber != 3 || params.PageSize != 5 {
		t.Fatalf("unexpected params %+v", params)
	}
}
