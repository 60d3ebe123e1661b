package align

import "math"

// solveAssignment solves the minimum-cost assignment problem for a square
// cost matrix and returns the assigned column for each row. Children sets of
// plan operators rarely exceed a handful of nodes, so the exact O(n^3)
// Hungarian algorithm with potentials is both required and cheap. Ties are
// resolved by scanning order, so the result is deterministic.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	u := make([]float64, n+1)
	v := make([]float64, n+1)
	// p[j] is the row currently assigned to column j, 0 for unassigned
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		// augment along the found path
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	ret := make([]int, n)
	for j := 1; j <= n; j++ {
		ret[p[j]-1] = j - 1
	}
	return ret
}
