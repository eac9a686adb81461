package jsonrepair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepairAlreadyValid(t *testing.T) {
	repaired, ok := Repair(`{"a": 1}`)
	assert.True(t, ok)
	assert.Equal(t, `{"a": 1}`, repaired)
}

func TestRepairUnterminatedString(t *testing.T) {
	repaired, ok := Repair(`{"a": "hello`)
	assert.True(t, ok)
	assert.True(t, jsonValid(repaired))
}

func TestRepairTrailingComma(t *testing.T) {
	repaired, ok := Repair(`{"a": 1, "b": 2,}`)
	assert.True(t, ok)
	assert.True(t, jsonValid(repaired))
}

func TestRepairUnbalancedBrackets(t *testing.T) {
	repaired, ok := Repair(`[{"a": 1}, {"b": 2}`)
	assert.True(t, ok)
	assert.True(t, jsonValid(repaired))
}

func TestRepairStripsCodeFence(t *testing.T) {
	repaired, ok := Repair("```json\n{\"a\": 1}\n```")
	assert.True(t, ok)
	assert.Equal(t, `{"a": 1}`, repaired)
}

func TestRepairGivesUpOnGarbage(t *testing.T) {
	_, ok := Repair("not json at all, just prose about the weather")
	assert.False(t, ok)
}

func jsonValid(s string) bool {
	return json.Valid([]byte(s))
}
