package errs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestQuorumErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "SameCauseError",
			err:    QuorumError{Cause: ErrQuorumUnreached},
			target: ErrQuorumUnreached,
			want:   true,
		},
		{
			name:   "DifferentError",
			err:    QuorumError{Cause: ErrQuorumUnreached},
			target: errors.New("quorum not reached"),
			want:   false,
		},
		{
			name:   "ContextCanceledCause",
			err:    QuorumError{Cause: context.Canceled},
			target: context.Canceled,
			want:   true,
		},
		{
			name:   "RefusedIsNotUnreached",
			err:    QuorumError{Cause: ErrReplicaRefused},
			target: ErrQuorumUnreached,
			want:   false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := errors.Is(test.err, test.target); got != test.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", test.err, test.target, got, test.want)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := TransportError{Node: 2, Cause: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TransportError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "node 2") {
		t.Errorf("TransportError message should name the node, got %q", err.Error())
	}
}

func TestQuorumErrorReportsPerNodeFailures(t *testing.T) {
	err := QuorumError{
		Cause:   ErrQuorumUnreached,
		Replies: 1,
		Failed: []NodeFailure{
			{NodeID: 0, Err: context.DeadlineExceeded},
			{NodeID: 2, Err: ErrReplicaRefused},
		},
	}
	msg := err.Error()
	for _, want := range []string{"successful replies: 1", "failed nodes: 2", "node 0", "node 2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message missing %q:\n%s", want, msg)
		}
	}
}
