package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateExplicitWinsOverAccept(t *testing.T) {
	got := Negotiate("application/vnd.apache.arrow.stream", &ResponseFormat{Format: "json"})
	assert.Equal(t, JSON, got)
}

func TestNegotiateFromAcceptHeader(t *testing.T) {
	testCases := []struct {
		name   string
		accept string
		want   Format
	}{
		{name: "arrow stream", accept: "application/vnd.apache.arrow.stream", want: ArrowStream},
		{name: "csv", accept: "text/csv", want: CSV},
		{name: "json", accept: "application/json", want: JSON},
		{name: "unrecognized defaults to arrow", accept: "text/plain", want: ArrowStream},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Negotiate(tc.accept, nil))
		})
	}
}

func TestNegotiateEmptyExplicitFallsBackToAccept(t *testing.T) {
	got := Negotiate("text/csv", &ResponseFormat{})
	assert.Equal(t, CSV, got)
}
