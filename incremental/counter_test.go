package incremental

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutstandingJobCounter(t *testing.T) {
	var c OutstandingJobCounter
	assert.False(t, c.Launched())

	assert.EqualValues(t, 1, c.Increment())
	assert.EqualValues(t, 2, c.Increment())
	assert.True(t, c.Launched())

	assert.EqualValues(t, 1, c.Decrement())
	assert.EqualValues(t, 1, c.Outstanding())
	assert.EqualValues(t, 0, c.Decrement())

	assert.Panics(t, func() { c.Decrement() })
}
