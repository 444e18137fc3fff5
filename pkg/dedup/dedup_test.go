package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcessOncePerWindow(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))
}

func TestEmptyIDAlwaysProcessed(t *testing.T) {
	d := New(time.Minute, 100)

	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
}

func TestExpiredEntriesProcessAgain(t *testing.T) {
	d := New(time.Nanosecond, 100)

	assert.True(t, d.ShouldProcess("a"))
	time.Sleep(time.Millisecond)
	assert.True(t, d.ShouldProcess("a"))
}

func TestCapacityStaysBounded(t *testing.T) {
	d := New(time.Hour, 10)

	for i := 0; i < 50; i++ {
		d.ShouldProcess(fmt.Sprintf("id-%d", i))
	}
	assert.LessOrEqual(t, len(d.seen), 10)
}
