// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package catalog

import (
	"fmt"
	"strings"
)

// findCycles returns every elementary cycle in the graph as a list of
// vertex paths, using Johnson's circuit-finding scheme over the
// adjacency list. Vertex order keeps the result deterministic.
func (g *Graph) findCycles() [][]int {
	var cycles [][]int
	n := len(g.vertices)
	blocked := make([]bool, n)
	blockMap := make([]map[int]bool, n)
	var stack []int

	var start int
	var circuit func(v int) bool
	var unblock func(v int)

	unblock = func(v int) {
		blocked[v] = false
		for w := range blockMap[v] {
			delete(blockMap[v], w)
			if blocked[w] {
				unblock(w)
			}
		}
	}

	circuit = func(v int) bool {
		found := false
		stack = append(stack, v)
		blocked[v] = true
		for _, e := range g.adjacent[v] {
			w := e.target
			if w < start {
				continue
			}
			if w == start {
				cycle := make([]int, len(stack))
				copy(cycle, stack)
				cycles = append(cycles, cycle)
				found = true
			} else if !blocked[w] {
				if circuit(w) {
					found = true
				}
			}
		}
		if found {
			unblock(v)
		} else {
			for _, e := range g.adjacent[v] {
				w := e.target
				if w < start {
					continue
				}
				if blockMap[w] == nil {
					blockMap[w] = map[int]bool{}
				}
				blockMap[w][v] = true
			}
		}
		stack = stack[:len(stack)-1]
		return found
	}

	for start = 0; start < n; start++ {
		for i := start; i < n; i++ {
			blocked[i] = false
			blockMap[i] = nil
		}
		circuit(start)
	}
	return cycles
}

// DetectCycles reports an error describing every dependency cycle in
// the graph, or nil when the graph is acyclic.
func (g *Graph) DetectCycles() error {
	cycles := g.findCycles()
	if len(cycles) == 0 {
		return nil
	}

	var descriptions []string
	for _, cycle := range cycles {
		var sb strings.Builder
		for i, id := range cycle {
			if i > 0 {
				sb.WriteString(" => ")
			}
			resource := g.vertices[id]
			fmt.Fprintf(&sb, "%s declared at %s:%d", resource.Ref(), resource.Path, resource.Position.Line)
		}
		// Repeat the first vertex to close the cycle.
		sb.WriteString(" => " + g.vertices[cycle[0]].Ref())
		descriptions = append(descriptions, sb.String())
	}

	var message strings.Builder
	plural := ""
	if len(descriptions) > 1 {
		plural = "s"
	}
	fmt.Fprintf(&message, "found %d resource dependency cycle%s:\n", len(descriptions), plural)
	for i, description := range descriptions {
		if i > 0 {
			message.WriteByte('\n')
		}
		fmt.Fprintf(&message, "  %d. %s", i+1, description)
	}
	return &Error{Message: message.String()}
}
