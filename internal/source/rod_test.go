package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitResult(t *testing.T) {
	live := context.Background()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()

	boom := errors.New("target crashed")

	tests := []struct {
		name      string
		ctx       context.Context
		err       error
		wantEmpty bool
		wantErr   error
	}{
		{"wait window ran out", live, context.DeadlineExceeded, true, nil},
		{"wrapped deadline", live, fmt.Errorf("element: %w", context.DeadlineExceeded), true, nil},
		{"caller deadline ran out first", expired, context.DeadlineExceeded, true, nil},
		{"canceled", canceled, context.Canceled, false, context.Canceled},
		{"canceled during wait", canceled, context.DeadlineExceeded, false, context.Canceled},
		{"browser failure", live, boom, false, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			empty, err := waitResult(tt.ctx, tt.err)
			assert.Equal(t, tt.wantEmpty, empty)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
