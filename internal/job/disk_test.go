package job

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
)

func fixedUsage(freeMB uint64) func(string) (*disk.UsageStat, error) {
	return func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: freeMB * 1024 * 1024}, nil
	}
}

func TestDiskCheckAgainstFloor(t *testing.T) {
	m := NewDiskMonitor(hclog.NewNullLogger(), "/data", 50, true)

	m.SetUsage(fixedUsage(100))
	ok, free := m.Check()
	assert.True(t, ok)
	assert.InDelta(t, 100, free, 0.1)

	m.SetUsage(fixedUsage(40))
	ok, _ = m.Check()
	assert.False(t, ok)
}

func TestDiskCheckForTranscodeHeadroom(t *testing.T) {
	m := NewDiskMonitor(hclog.NewNullLogger(), "/data", 50, true)
	src := int64(100 * 1024 * 1024)

	// Needs 100*1.5 + 50 = 200MB free.
	m.SetUsage(fixedUsage(250))
	ok, _ := m.CheckFor(src)
	assert.True(t, ok)

	m.SetUsage(fixedUsage(180))
	ok, _ = m.CheckFor(src)
	assert.False(t, ok)
}

func TestDiskDisabledAlwaysPasses(t *testing.T) {
	m := NewDiskMonitor(hclog.NewNullLogger(), "/data", 50, false)
	m.SetUsage(fixedUsage(0))

	ok, _ := m.Check()
	assert.True(t, ok)
	ok, _ = m.CheckFor(1 << 40)
	assert.True(t, ok)
}

func TestDiskStatFailureDoesNotBlock(t *testing.T) {
	m := NewDiskMonitor(hclog.NewNullLogger(), "/data", 50, true)
	m.SetUsage(func(string) (*disk.UsageStat, error) {
		return nil, errors.New("statfs failed")
	})

	ok, _ := m.Check()
	assert.True(t, ok)
}

func TestActiveCounter(t *testing.T) {
	var c ActiveCounter
	assert.EqualValues(t, 0, c.Count())
	c.Register()
	c.Register()
	assert.EqualValues(t, 2, c.Count())
	c.Unregister()
	assert.EqualValues(t, 1, c.Count())
}
