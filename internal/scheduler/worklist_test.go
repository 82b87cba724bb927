package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDayQueueRequeueIsBounded(t *testing.T) {
	q := newDayQueue([]int{0, 1})
	popped := 0
	for !q.empty() {
		day := q.pop()
		popped++
		q.requeue(day)
	}
	assert.Equal(t, 4, popped, "two days plus two requeues")
	assert.False(t, q.requeue(0))
}

func TestRequirementLifecycle(t *testing.T) {
	w := &worklist{}
	w.push(requirement{classID: "c1", required: 2})
	w.push(requirement{classID: "c2", required: 0})

	first, ok := w.pop()
	assert.True(t, ok)
	assert.Equal(t, StatePending, first.state)
	first.accept()
	assert.Equal(t, StatePartiallyScheduled, first.state)
	first.finish()
	assert.Equal(t, StateExhausted, first.state)
	assert.Equal(t, ReasonSearchExhausted, first.reason)

	second, ok := w.pop()
	assert.True(t, ok)
	assert.Equal(t, StateSatisfied, second.state)

	_, ok = w.pop()
	assert.False(t, ok)
}
