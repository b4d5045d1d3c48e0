package gameerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "simple error message",
			err:     New(Validation, "invalid input", nil),
			wantMsg: "invalid input",
		},
		{
			name:    "error with underlying error",
			err:     New(Network, "release query failed", errors.New("connection reset")),
			wantMsg: "release query failed: connection reset",
		},
		{
			name:    "only underlying error",
			err:     New(Filesystem, "", errors.New("disk full")),
			wantMsg: "disk full",
		},
		{
			name:    "empty message",
			err:     New(Internal, "", nil),
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	root := errors.New("root cause")
	err := New(Filesystem, "extract failed", root)

	assert.True(t, errors.Is(err, root))
	assert.Equal(t, root, err.Unwrap())
}

func TestKindOf_ThroughWrapping(t *testing.T) {
	inner := New(NotFound, "release not found", nil)
	wrapped := fmt.Errorf("refresh alpha: %w", inner)

	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, NotFound))
	assert.False(t, Is(wrapped, Network))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, NotFound))
}

func TestAmbiguous_CopiesCandidates(t *testing.T) {
	candidates := []string{"a.exe", "b.exe"}
	err := Ambiguous("pick one", candidates)
	candidates[0] = "changed"

	assert.Equal(t, AmbiguousChoice, err.Kind)
	assert.Equal(t, []string{"a.exe", "b.exe"}, CandidatesOf(fmt.Errorf("wrap: %w", err)))
	assert.Nil(t, CandidatesOf(New(Network, "x", nil)))
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(New(Network, "x", nil)))
	assert.True(t, Recoverable(New(RateLimited, "x", nil)))
	assert.True(t, Recoverable(New(NotFound, "x", nil)))
	assert.False(t, Recoverable(New(Filesystem, "x", nil)))
	assert.False(t, Recoverable(errors.New("plain")))
}
