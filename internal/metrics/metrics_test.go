package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	c := New()
	c.Observe("upsert", time.Now(), nil)
	c.Observe("upsert", time.Now(), nil)
	c.Observe("upsert", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, c.Count("upsert", OutcomeOK))
	assert.Equal(t, 1.0, c.Count("upsert", OutcomeError))
	assert.Equal(t, 0.0, c.Count("read", OutcomeOK))
}

func TestAddRows(t *testing.T) {
	c := New()
	c.AddRows("read", 3)
	c.AddRows("read", 0)
	c.AddRows("read", 2)
	assert.Equal(t, 5.0, c.Rows("read"))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.Observe("upsert", time.Now(), nil)
	c.AddRows("upsert", 1)
	assert.Zero(t, c.Count("upsert", OutcomeOK))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.Observe("read", time.Now(), nil)
	assert.Equal(t, 1.0, a.Count("read", OutcomeOK))
	assert.Zero(t, b.Count("read", OutcomeOK))
}

func TestWriteText(t *testing.T) {
	c := New()
	c.Observe("delete", time.Now(), nil)
	c.AddRows("delete", 4)

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `healthstore_operations_total{op="delete",outcome="ok"} 1`)
	assert.Contains(t, out, `healthstore_rows_total{op="delete"} 4`)
	assert.Contains(t, out, `healthstore_operation_duration_seconds_count{op="delete"} 1`)
}
