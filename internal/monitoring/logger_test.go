package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { SetLogger(nil) })
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := capture(t)
	Logf("fix %d accepted", 3)
	assert.Equal(t, []string{"fix 3 accepted"}, *lines)
}

func TestSetLogger_NilMutes(t *testing.T) {
	lines := capture(t)
	SetLogger(nil)
	Logf("dropped")
	assert.Empty(t, *lines)
}

func TestComponent(t *testing.T) {
	log := Component("tracker")
	lines := capture(t)

	log("state %s -> %s", "idle", "acquiring")

	assert.Equal(t, []string{"[tracker] state idle -> acquiring"}, *lines)
}
