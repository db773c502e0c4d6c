package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFeedKeepsMostRecent(t *testing.T) {
	f := NewFeed(2)
	base := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	tick := 0
	f.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	f.Notify(LevelInfo, "one")
	f.Notify(LevelWarning, "two")
	f.Notify(LevelError, "three")

	all := f.All()
	assert.Len(t, all, 2)
	assert.Equal(t, "two", all[0].Message)
	assert.Equal(t, "three", all[1].Message)

	recent := f.Since(base.Add(2 * time.Second))
	assert.Len(t, recent, 1)
	assert.Equal(t, LevelError, recent[0].Level)
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewFeed(5), NewFeed(5)
	Multi{a, b, Discard{}}.Notify(LevelSuccess, "synced")
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}
