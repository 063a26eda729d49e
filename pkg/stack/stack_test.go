package stack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	s := New[int](4)
	require.True(t, s.Empty())

	s.Push(1)
	s.Push(2)
	s.Push(3)
	require.Equal(t, 3, s.Size())
	require.Equal(t, 3, s.Top())

	require.Equal(t, 3, s.Pop())
	require.Equal(t, 2, s.Pop())
	require.Equal(t, 1, s.Pop())
	require.True(t, s.Empty())

	require.PanicsWithError(t, ErrEmptyStack.Error(), func() { s.Pop() })
	require.PanicsWithError(t, ErrEmptyStack.Error(), func() { s.Top() })
}
