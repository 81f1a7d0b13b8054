package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeLevels(t *testing.T) {
	assert.Equal(t, AvailabilityAbsent, Probe(nil))
	assert.Equal(t, AvailabilityAbsent, Probe(Absent()))
	assert.Equal(t, AvailabilityFull, Probe(NewScripted()))

	partial := &Funcs{DataLayerFn: func() map[string]any { return map[string]any{} }}
	assert.Equal(t, AvailabilityPartial, Probe(partial))
}

func TestAbsentGuardedAccessors(t *testing.T) {
	rt := Absent()
	_, ok := rt.DataLayer()
	assert.False(t, ok)
	_, ok = rt.LoaderConfig()
	assert.False(t, ok)
	_, ok = rt.WorkQueue()
	assert.False(t, ok)
	_, ok = rt.RuleDiag()
	assert.False(t, ok)

	// 入口为空操作，永不 panic
	assert.NotPanics(t, func() {
		rt.View(map[string]any{"a": 1}, func() {}, nil)
		rt.Link(nil, nil, nil)
	})
}

func TestFuncsNilFieldsMeanMissing(t *testing.T) {
	f := &Funcs{
		WorkQueueFn: func() []int { return []int{3} },
	}
	wq, ok := f.WorkQueue()
	assert.True(t, ok)
	assert.Equal(t, []int{3}, wq)

	_, ok = f.DataLayer()
	assert.False(t, ok)

	assert.NotPanics(t, func() { f.View(nil, nil, nil) })
}

func TestScriptedRecordsCalls(t *testing.T) {
	s := NewScripted()
	s.View(map[string]any{"k": "v"}, nil, nil)
	s.Link(nil, nil, nil)
	assert.Equal(t, []string{"view", "link"}, s.Calls)

	dl, ok := s.DataLayer()
	assert.True(t, ok)
	assert.Equal(t, "v", dl["k"])
}

func TestAvailabilityString(t *testing.T) {
	assert.Equal(t, "absent", AvailabilityAbsent.String())
	assert.Equal(t, "partial", AvailabilityPartial.String())
	assert.Equal(t, "full", AvailabilityFull.String())
}
