package report

import (
	"fmt"
	"testing"

	"tutordash/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboard_TieKeepsFirstSeenOrder(t *testing.T) {
	sessions := []core.Session{
		session("Alice", 2024, 1, 5, 2, 5000),
		session("Bob", 2024, 1, 6, 1, 5000),
	}
	board := Leaderboard(sessions, now, 0)
	assert.Equal(t, []string{"Alice", "Bob"}, names(board))

	// Reversed input, reversed output: the tie-break is input order, not the name.
	board = Leaderboard([]core.Session{sessions[1], sessions[0]}, now, 0)
	assert.Equal(t, []string{"Bob", "Alice"}, names(board))
}

func TestLeaderboard_SortedByRevenue(t *testing.T) {
	sessions := []core.Session{
		session("A", 2024, 1, 1, 1, 10000),
		session("B", 2024, 1, 2, 1, 10000),
		session("A", 2024, 1, 3, 1, 5000),
		session("C", 2024, 1, 4, 2, 20000),
		session("B", 2024, 4, 4, 2, 90000), // planned, ignored
	}
	board := Leaderboard(sessions, now, 10)
	require.Equal(t, []string{"C", "A", "B"}, names(board))

	a := board[1]
	assert.Equal(t, 150.0, a.TotalPay)
	assert.Equal(t, 2.0, a.TotalHours)
	assert.Equal(t, 2, a.SessionCount)
	require.NotNil(t, a.HourlyRate)
	assert.Equal(t, 75.0, *a.HourlyRate)
	assert.True(t, a.RateDefined)

	for i := 1; i < len(board); i++ {
		assert.GreaterOrEqual(t, board[i-1].TotalPay, board[i].TotalPay)
	}
}

func TestLeaderboard_ZeroHoursSignalsUndefinedRate(t *testing.T) {
	board := Leaderboard([]core.Session{session("Flat", 2024, 2, 1, 0, 2000)}, now, 5)
	require.Len(t, board, 1)
	assert.Nil(t, board[0].HourlyRate)
	assert.False(t, board[0].RateDefined)
	assert.Equal(t, 20.0, board[0].TotalPay)
}

func TestLeaderboard_TopN(t *testing.T) {
	var sessions []core.Session
	for i := 0; i < 15; i++ {
		sessions = append(sessions, session(fmt.Sprintf("S%02d", i), 2024, 1, 1, 1, int64(100*(i+1))))
	}
	assert.Len(t, Leaderboard(sessions, now, 0), DefaultTopN)
	assert.Len(t, Leaderboard(sessions, now, 3), 3)
	assert.Equal(t, "S14", Leaderboard(sessions, now, 3)[0].Name)
	assert.Empty(t, Leaderboard(nil, now, 3))
	assert.NotNil(t, Leaderboard(nil, now, 3))
}
