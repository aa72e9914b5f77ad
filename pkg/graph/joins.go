package graph

import "sort"

// FindJoinNode returns the first node reachable by every branch in
// targets (spec.md section 5: "each task runs its subgraph until
// reaching a join node (the first node reachable by every branch) or
// terminating"). It runs a BFS from each target over the static edge
// graph, intersects the reachable sets, and picks the common node with
// the smallest maximum branch-distance (the earliest point at which all
// branches have converged), breaking ties alphabetically for
// determinism. Returns ("", false) when fewer than two targets are given
// or no common downstream node exists (the branches never reconverge).
func FindJoinNode(nodes map[string]*Node, targets []string) (string, bool) {
	if len(targets) < 2 {
		return "", false
	}

	distances := make([]map[string]int, len(targets))
	for i, t := range targets {
		distances[i] = bfsDistances(nodes, t)
	}

	var common []string
	for name := range distances[0] {
		inAll := true
		for i := 1; i < len(distances); i++ {
			if _, ok := distances[i][name]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, name)
		}
	}
	if len(common) == 0 {
		return "", false
	}
	sort.Strings(common)

	best := ""
	bestScore := -1
	for _, name := range common {
		maxDist := 0
		for _, d := range distances {
			if d[name] > maxDist {
				maxDist = d[name]
			}
		}
		if bestScore == -1 || maxDist < bestScore {
			bestScore = maxDist
			best = name
		}
	}
	return best, true
}

// bfsDistances returns the hop distance from start to every node
// reachable from it, including start itself at distance 0.
func bfsDistances(nodes map[string]*Node, start string) map[string]int {
	dist := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n, ok := nodes[cur]
		if !ok {
			continue
		}
		for _, t := range n.Edges {
			for _, next := range t.Names() {
				if _, seen := dist[next]; !seen {
					dist[next] = dist[cur] + 1
					queue = append(queue, next)
				}
			}
		}
	}
	return dist
}
