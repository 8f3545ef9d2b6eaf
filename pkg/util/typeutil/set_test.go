package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	set := NewSet(1, 2, 3)
	assert.Len(t, set, 3)
	assert.True(t, set.Contain(2))
	assert.False(t, set.Contain(4))

	set.Insert(3, 4)
	assert.Len(t, set, 4)

	set.Remove(1)
	set.Remove(9)
	assert.False(t, set.Contain(1))
	assert.Len(t, set, 3)
}

func TestConcurrentSet(t *testing.T) {
	set := NewConcurrentSet[string]()
	assert.True(t, set.Insert("a"))
	assert.False(t, set.Insert("a"))
	assert.True(t, set.Insert("b"))
	assert.True(t, set.Contain("a"))

	set.Range(func(e string) bool {
		if e == "a" {
			set.Remove(e)
		}
		return true
	})
	assert.False(t, set.Contain("a"))
	assert.True(t, set.Contain("b"))

	count := 0
	set.Range(func(string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
