// SPDX-License-Identifier: MIT

package lazy

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_RendersLate(t *testing.T) {
	name := "alice"
	s := NewString(func() string { return "hello " + name })

	assert.Equal(t, "hello alice", s.String())

	// The render reflects state at use time, not construction time.
	name = "bob"
	assert.Equal(t, "hello bob", s.String())
	assert.Equal(t, "hello bob", fmt.Sprint(s))
}

func TestString_ZeroValue(t *testing.T) {
	var s String
	assert.Equal(t, "", s.String())
}

func TestSprintf_ForcesArgumentsAtRenderTime(t *testing.T) {
	n := 1
	count := DeferFunc(func() int { return n })

	s := Sprintf("%d unread message(s)", count)

	assert.Equal(t, "1 unread message(s)", s.String())

	n = 5
	assert.Equal(t, "5 unread message(s)", s.String())
}

func TestSprintf_PlainArguments(t *testing.T) {
	s := Sprintf("%s/%d", "a", 2)
	assert.Equal(t, "a/2", s.String())
}

func TestConcat_MixedParts(t *testing.T) {
	unit := DeferFunc(func() string { return "ms" })
	s := Concat("took ", 15, unit)
	assert.Equal(t, "took 15ms", s.String())
}

func TestString_MarshalText(t *testing.T) {
	s := NewString(func() string { return "encoded" })

	out, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(out))

	// encoding/json picks up MarshalText, so deferred strings can sit in
	// response payloads and render on write.
	payload, err := json.Marshal(map[string]any{"msg": s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg":"encoded"}`, string(payload))
}

func TestString_ImplementsPromise(t *testing.T) {
	s := NewString(func() string { return "x" })
	require.True(t, IsDeferred(s))

	out, err := ForceAny(s)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}
