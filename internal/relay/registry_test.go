package relay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryAddRemove(t *testing.T) {
	r := NewConnectionRegistry()

	r.Add("t1", "c1")
	r.Add("t1", "c2")
	r.Add("t2", "c3")

	require.ElementsMatch(t, []string{"c1", "c2"}, r.Connections("t1"))
	require.Equal(t, 3, r.Len())

	r.Remove("t1", "c1")
	require.ElementsMatch(t, []string{"c2"}, r.Connections("t1"))

	r.Remove("t1", "c2")
	require.Empty(t, r.Connections("t1"))
	require.Equal(t, 1, r.Len())
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := NewConnectionRegistry()
	r.Remove("t1", "never-added")
	require.Equal(t, 0, r.Len())
}
