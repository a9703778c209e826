// README: Single-vehicle routing solver: nearest-neighbor construction plus
// time-boxed 2-opt, never worse than the naive sequential order.
package routing

import "time"

// Solution is a visiting order over customer indexes 1..n (depot index 0 is
// implicit at both ends), with its distance and the naive baseline.
type Solution struct {
	Order       []int
	Meters      int
	NaiveMeters int
}

// SavingsMeters is how much shorter the solved tour is than visiting stops in
// arrival order. Never negative.
func (s Solution) SavingsMeters() int {
	return s.NaiveMeters - s.Meters
}

// Solve takes an asymmetric distance matrix in integer meters over
// {depot} ∪ customers, with the depot at index 0, and returns a tour starting
// and ending at the depot. Construction is nearest-neighbor; improvement is
// 2-opt bounded by budget. If improvement cannot beat the naive sequential
// order by the deadline, the naive order is returned.
func Solve(matrix [][]int, budget time.Duration) Solution {
	n := len(matrix) - 1
	if n <= 0 {
		return Solution{}
	}

	naive := make([]int, n)
	for i := range naive {
		naive[i] = i + 1
	}
	naiveMeters := tourMeters(matrix, naive)
	if n == 1 {
		return Solution{Order: naive, Meters: naiveMeters, NaiveMeters: naiveMeters}
	}

	deadline := time.Now().Add(budget)

	best := nearestNeighbor(matrix)
	best = twoOpt(matrix, best, deadline)
	bestMeters := tourMeters(matrix, best)

	if bestMeters > naiveMeters {
		return Solution{Order: naive, Meters: naiveMeters, NaiveMeters: naiveMeters}
	}
	return Solution{Order: best, Meters: bestMeters, NaiveMeters: naiveMeters}
}

func tourMeters(matrix [][]int, order []int) int {
	total := 0
	cur := 0
	for _, next := range order {
		total += matrix[cur][next]
		cur = next
	}
	total += matrix[cur][0]
	return total
}

func nearestNeighbor(matrix [][]int) []int {
	n := len(matrix) - 1
	visited := make([]bool, n+1)
	order := make([]int, 0, n)
	cur := 0
	for len(order) < n {
		next := -1
		for j := 1; j <= n; j++ {
			if visited[j] {
				continue
			}
			if next == -1 || matrix[cur][j] < matrix[cur][next] {
				next = j
			}
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	return order
}

// twoOpt reverses segments while that shortens the tour, checking the
// deadline between passes so a large batch cannot stall dispatch.
func twoOpt(matrix [][]int, order []int, deadline time.Time) []int {
	best := append([]int(nil), order...)
	bestMeters := tourMeters(matrix, best)

	improved := true
	for improved && time.Now().Before(deadline) {
		improved = false
		for i := 0; i < len(best)-1; i++ {
			for j := i + 1; j < len(best); j++ {
				cand := append([]int(nil), best...)
				reverse(cand[i : j+1])
				if m := tourMeters(matrix, cand); m < bestMeters {
					best = cand
					bestMeters = m
					improved = true
				}
			}
			if !time.Now().Before(deadline) {
				return best
			}
		}
	}
	return best
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
