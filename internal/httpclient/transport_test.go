package httpclient

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsConnectivityFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", timeoutErr{}, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid"}, true},
		{"refused", syscall.ECONNREFUSED, true},
		{"reset", syscall.ECONNRESET, true},
		{"host unreachable", syscall.EHOSTUNREACH, true},
		{"wrapped refused", errors.New("dial tcp 127.0.0.1:1: connection refused"), true},
		{"plain", errors.New("unexpected EOF"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectivityFailure(tt.err); got != tt.want {
				t.Fatalf("isConnectivityFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDescribeFailure(t *testing.T) {
	if got := describeFailure(nil); got != "" {
		t.Fatalf("nil error described as %q", got)
	}
	got := describeFailure(syscall.ECONNREFUSED)
	if !strings.HasPrefix(got, "request failed: network unreachable, blocked, or timed out: ") {
		t.Fatalf("connectivity message = %q", got)
	}
	got = describeFailure(errors.New("unexpected EOF"))
	if got != "request failed: unexpected EOF" {
		t.Fatalf("generic message = %q", got)
	}
}

func TestBuildHTTPClientAppliesTimeout(t *testing.T) {
	c := NewClient(nil)
	client := c.buildHTTPClient(Options{Timeout: 3 * time.Second})
	if client.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v", client.Timeout)
	}
}
