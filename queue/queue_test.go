package queue

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_RunsJobs(t *testing.T) {
	q := NewQueue(10, 2)
	q.Start()

	var ran, failed atomic.Int32
	for i := range 5 {
		ok := q.Enqueue(Job{
			Run: func() error {
				ran.Add(1)
				if i%2 == 0 {
					return errors.New("odd one out")
				}
				return nil
			},
			OnFail: func(error) { failed.Add(1) },
		})
		assert.True(t, ok)
	}

	q.Stop()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int32(3), failed.Load())
}

func TestQueue_Full(t *testing.T) {
	q := NewQueue(1, 1)

	assert.True(t, q.Enqueue(Job{Run: func() error { return nil }}))
	assert.False(t, q.Enqueue(Job{Run: func() error { return nil }}))

	q.Start()
	q.Stop()
}

func TestQueue_StoppedRejects(t *testing.T) {
	q := NewQueue(1, 1)
	q.Start()
	q.Stop()
	q.Stop()

	assert.False(t, q.Enqueue(Job{Run: func() error { return nil }}))
}
