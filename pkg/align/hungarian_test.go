package align

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func assignmentCost(cost [][]float64, assignment []int) float64 {
	total := 0.0
	for i, j := range assignment {
		total += cost[i][j]
	}
	return total
}

func TestSolveAssignment(t *testing.T) {
	got := solveAssignment(nil)
	require.Nil(t, got)

	got = solveAssignment([][]float64{{42}})
	require.Equal(t, []int{0}, got)

	// classic example: optimal is the anti-diagonal
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	got = solveAssignment(cost)
	require.Equal(t, []int{1, 0, 2}, got)
	require.Equal(t, 5.0, assignmentCost(cost, got))

	// every permutation is a valid assignment
	seen := make([]bool, 3)
	for _, j := range got {
		require.False(t, seen[j])
		seen[j] = true
	}
}

func TestSolveAssignmentPrefersCheapDiagonal(t *testing.T) {
	cost := [][]float64{
		{0, 10},
		{10, 0},
	}
	got := solveAssignment(cost)
	require.Equal(t, []int{0, 1}, got)
}

func TestSolveAssignmentDeterministic(t *testing.T) {
	cost := [][]float64{
		{1, 1, 2},
		{1, 1, 2},
		{2, 2, 1},
	}
	first := solveAssignment(cost)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, solveAssignment(cost))
	}
	require.Equal(t, 3.0, assignmentCost(cost, first))
}
