package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), nil, 0)

	var order []string
	for _, name := range []string{"directory", "cache", "audit"} {
		name := name
		sm.RegisterShutdownFunc(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"audit", "cache", "directory"}, order)
}

func TestShutdownManager_ContinuesAfterError(t *testing.T) {
	sm := NewShutdownManager(NewLogger(ErrorLevel, &bytes.Buffer{}), nil, 0)

	ran := false
	sm.RegisterShutdownFunc("first", func(ctx context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc("second", func(ctx context.Context) error {
		return errors.New("flush failed")
	})

	err := sm.Shutdown(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "second: flush failed")
	assert.True(t, ran)
}
