package notice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList(t *testing.T) {
	var l List
	assert.False(t, l.Has(Warning))

	l.Success("Event added", "")
	l.Warn("File not removed", "storage unavailable")
	l.Fail("Delete failed", errors.New("boom"))
	l.Fail("Unknown", nil)

	assert.True(t, l.Has(Success))
	assert.True(t, l.Has(Warning))
	assert.True(t, l.Has(Destructive))
	assert.Equal(t, Notice{Destructive, "Delete failed", "boom"}, l[2])
	assert.Equal(t, "", l[3].Message)
}
