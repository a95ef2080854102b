package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultConstructors(t *testing.T) {
	pass := Pass()
	assert.True(t, pass.Passed())
	assert.False(t, pass.Failed())
	assert.Equal(t, StatusPass, pass.Status())
	assert.Empty(t, pass.Reason())

	fail := Fail("row count differs", "label differs")
	assert.True(t, fail.Failed())
	assert.Equal(t, "row count differs", fail.Reason())
	assert.Equal(t, []string{"row count differs", "label differs"}, fail.Reasons())

	boom := errors.New("disk full")
	errored := Errored(boom)
	assert.True(t, errored.Failed())
	assert.ErrorIs(t, errored.Err(), boom)
	assert.Equal(t, "disk full", errored.Reason())

	skip := Skip("fail-fast")
	assert.True(t, skip.Skipped())
	assert.Equal(t, StatusSkip, skip.Status())
	assert.Equal(t, "fail-fast", skip.Reason())

	var zero Result
	assert.False(t, zero.Passed() || zero.Failed() || zero.Skipped())
}

func TestResultIsAValue(t *testing.T) {
	reasons := []string{"a"}
	r := Fail(reasons...)
	reasons[0] = "changed"
	assert.Equal(t, "a", r.Reason())

	got := r.Reasons()
	got[0] = "changed"
	assert.Equal(t, "a", r.Reason())

	payload := []byte("doc")
	withPayload := r.WithPayload(payload)
	payload[0] = 'x'
	assert.Equal(t, []byte("doc"), withPayload.Payload())
	assert.Nil(t, r.Payload())
	assert.True(t, withPayload.Failed())
}
