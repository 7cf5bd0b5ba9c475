package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeHTTPError struct{ code int }

func (e *fakeHTTPError) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e *fakeHTTPError) StatusCode() int { return e.code }

func TestTransient(t *testing.T) {
	tests := []struct {
		err    error
		expect bool
	}{
		{nil, false},
		{errors.New("connection refused"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("missing webhook url"), false},
		{errors.New("invalid recipient"), false},
		{&fakeHTTPError{code: 500}, true},
		{&fakeHTTPError{code: 503}, true},
		{&fakeHTTPError{code: 429}, true},
		{&fakeHTTPError{code: 400}, false},
		{&fakeHTTPError{code: 401}, false},
		{&fakeHTTPError{code: 404}, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, false},
		{fmt.Errorf("send failed: %w", &fakeHTTPError{code: 502}), true},
	}

	for _, tt := range tests {
		if got := Transient(tt.err); got != tt.expect {
			t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
