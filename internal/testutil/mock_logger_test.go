package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/meshdecomp/internal/infrastructure/monitoring/logging"
)

func TestMockLogger_Records(t *testing.T) {
	m := NewMockLogger()
	m.Info("hello", logging.String("k", "v"))
	m.Error("boom")

	assert.True(t, m.HasMessage("info", "hello"))
	assert.True(t, m.HasMessage("error", "boom"))
	assert.False(t, m.HasMessage("debug", "hello"))
	assert.Len(t, m.GetMessages(), 2)

	m.Clear()
	assert.Empty(t, m.GetMessages())
}

func TestMockLogger_WithSharesRecord(t *testing.T) {
	m := NewMockLogger()
	child := m.With(logging.String("run_id", "r1")).Named("svc")
	child.Warn("careful", logging.Int("n", 2))
	child.Warn("careful")

	msg, ok := m.Find("warn", "careful")
	assert.True(t, ok)
	assert.Equal(t, "svc", msg.Logger)
	v, ok := msg.Field("run_id")
	assert.True(t, ok)
	assert.Equal(t, "r1", v)
	n, _ := msg.Field("n")
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Count("warn", "careful"))
	assert.NoError(t, m.Sync())
}
