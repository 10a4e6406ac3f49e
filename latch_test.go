package ugci

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLatchTakeClears(t *testing.T) {
	var l latch
	l.set(StatusIO)
	require.Equal(t, StatusIO, l.take())
	require.Equal(t, StatusOK, l.take())
}

func TestLatchNewestWins(t *testing.T) {
	var l latch
	l.set(StatusIO)
	l.set(StatusStall)
	require.Equal(t, StatusStall, l.take())
	require.Equal(t, StatusOK, l.take())
}

func TestStatusBenign(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusConnReset, StatusShutdown} {
		require.True(t, s.benign(), s.String())
	}
	for _, s := range []Status{StatusOK, StatusStall, StatusNoMem, StatusIO} {
		require.False(t, s.benign(), s.String())
	}
}

func TestStatusErrMapping(t *testing.T) {
	require.NoError(t, statusErr(StatusOK))
	require.ErrorIs(t, statusErr(StatusStall), ErrBrokenPipe)
	require.ErrorIs(t, statusErr(StatusNoMem), ErrNoMemory)
	require.ErrorIs(t, statusErr(StatusIO), ErrIO)
	require.ErrorIs(t, statusErr(StatusShutdown), ErrIO)
}
