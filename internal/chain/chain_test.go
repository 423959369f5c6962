package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetagraphUIDForHotkey(t *testing.T) {
	m := &Metagraph{Hotkeys: []string{"a", "b", "c"}}
	assert.Equal(t, int64(1), m.UIDForHotkey("b"))
	assert.Equal(t, int64(-1), m.UIDForHotkey("missing"))
}

func TestDefaultSetWeightsOptions(t *testing.T) {
	opts := DefaultSetWeightsOptions()
	assert.False(t, opts.WaitForInclusion)
	assert.False(t, opts.WaitForFinalization)
}
