//go:build !debug_mem_utils

package memutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugCheckPow2_NoOp(t *testing.T) {
	require.NotPanics(t, func() { DebugCheckPow2(48, "alignment") })
	require.NotPanics(t, func() { AlignRange(10, 20, 16, 1024) })
}
