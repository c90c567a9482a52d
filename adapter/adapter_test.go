package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	transient := errors.New("transient")

	tests := []struct {
		name         string
		retries      int
		failures     int
		permanent    bool
		wantAttempts int
		wantErr      bool
	}{
		{name: "first try", retries: 3, failures: 0, wantAttempts: 1},
		{name: "succeeds after retries", retries: 3, failures: 2, wantAttempts: 3},
		{name: "exhausted", retries: 2, failures: 10, wantAttempts: 3, wantErr: true},
		{name: "permanent stops", retries: 5, failures: 10, permanent: true, wantAttempts: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			attempts, err := Retry(t.Context(), tt.retries, time.Millisecond, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return fmt.Errorf("%w: bad request", ErrPermanent)
					}
					return transient
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if attempts != tt.wantAttempts || calls != tt.wantAttempts {
				t.Errorf("attempts = %d, calls = %d, want %d", attempts, calls, tt.wantAttempts)
			}
		})
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	_, err := Retry(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
