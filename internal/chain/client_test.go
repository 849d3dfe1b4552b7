package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"classified", Errorf(KindNonceConflict, "nonce 7 in use"), KindNonceConflict},
		{"wrapped classified", fmt.Errorf("submit: %w", Errorf(KindMalformed, "bad arg")), KindMalformed},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindUnavailable},
		{"dns timeout", &net.DNSError{Err: "timeout", IsTimeout: true}, KindTimeout},
		{"unknown", errors.New("boom"), KindRejected},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Errorf(KindTimeout, "x")))
	assert.True(t, IsTransient(Errorf(KindUnavailable, "x")))
	assert.True(t, IsTransient(Errorf(KindNonceConflict, "x")))
	assert.True(t, IsTransient(Errorf(KindRateLimited, "x")))
	assert.False(t, IsTransient(Errorf(KindRejected, "x")))
	assert.False(t, IsTransient(Errorf(KindMalformed, "x")))
	assert.False(t, IsTransient(errors.New("unknown")))
}

func TestIsAmbiguous(t *testing.T) {
	assert.True(t, IsAmbiguous(Errorf(KindTimeout, "x")))
	assert.False(t, IsAmbiguous(Errorf(KindNonceConflict, "x")))
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct{ in, want string }{
		{"'SPXXXX.governance", "SPXXXX.governance"},
		{"(some 'SPXXXX.governance)", "SPXXXX.governance"},
		{"(ok (some 'SPXXXX.gip-token))", "SPXXXX.gip-token"},
		{"  u100 ", "u100"},
		{"none", "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeValue(tt.in), tt.in)
	}
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual("(some 'SP1.a)", "'SP1.a"))
	assert.False(t, ValuesEqual("(some 'SP1.a)", "'SP1.b"))
	assert.Equal(t, "'SP1.a", PrincipalLiteral("SP1.a"))
	assert.Equal(t, "'SP1.a", PrincipalLiteral("'SP1.a"))
}
