package record

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeString(t *testing.T, src string) (Record, error) {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &node))
	// Unmarshal into a Node yields a document node wrapping the mapping.
	return DecodeYAML(node.Content[0])
}

func TestDecodeYAML_Sleep(t *testing.T) {
	rec, err := decodeString(t, `
type: SLEEP_SESSION
uuid: 5b0f7d8e-9c1a-4f3b-8e2d-1a2b3c4d5e6f
start_time: 0
end_time: 100
title: nap
stages:
  - {start_time: 0, end_time: 40, stage: 4}
`)
	require.NoError(t, err)
	sleep, ok := rec.(*SleepSessionRecord)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, uuid.MustParse("5b0f7d8e-9c1a-4f3b-8e2d-1a2b3c4d5e6f"), sleep.UUID)
	assert.Equal(t, "nap", sleep.Title)
	require.Len(t, sleep.Stages, 1)
	assert.Equal(t, int64(40), sleep.Stages[0].EndTime)
}

func TestDecodeYAML_UnknownType(t *testing.T) {
	_, err := decodeString(t, "type: FLIGHTS_CLIMBED\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown record type "FLIGHTS_CLIMBED"`)
}
