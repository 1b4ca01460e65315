package jobs

import (
	"errors"
	"fmt"
	"testing"
)

func studioIDs(n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("studio-%d", i)
	}
	return ids
}

func TestDistributor_Basic(t *testing.T) {
	dist := NewDistributor(500)
	dist.AddNode("instance-1")
	dist.AddNode("instance-2")
	dist.AddNode("instance-3")

	first, err := dist.Owner("studio-a")
	if err != nil {
		t.Fatalf("Owner failed: %v", err)
	}
	again, err := dist.Owner("studio-a")
	if err != nil {
		t.Fatalf("Owner failed: %v", err)
	}
	if first != again {
		t.Errorf("assignment not stable: %s != %s", first, again)
	}
}

func TestDistributor_Distribution(t *testing.T) {
	dist := NewDistributor(500)
	dist.AddNode("instance-1")
	dist.AddNode("instance-2")
	dist.AddNode("instance-3")

	counts := make(map[string]int)
	for _, id := range studioIDs(300) {
		node, err := dist.Owner(id)
		if err != nil {
			t.Fatalf("Owner failed: %v", err)
		}
		counts[node]++
	}

	for node, count := range counts {
		t.Logf("%s: %d studios", node, count)
		if count < 70 || count > 130 {
			t.Errorf("%s has %d studios, expected ~100 (±30)", node, count)
		}
	}
}

func TestDistributor_AddAndRemoveChurn(t *testing.T) {
	tests := []struct {
		name      string
		start     []string
		operation string
		node      string
	}{
		{"add fourth", []string{"instance-1", "instance-2", "instance-3"}, "add", "instance-4"},
		{"remove third", []string{"instance-1", "instance-2", "instance-3", "instance-4"}, "remove", "instance-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist := NewDistributor(500)
			for _, n := range tt.start {
				dist.AddNode(n)
			}
			keys := studioIDs(100)

			predicted := dist.Churn(keys, tt.operation, tt.node)
			before := dist.Assignments(keys)
			if tt.operation == "add" {
				dist.AddNode(tt.node)
			} else {
				dist.RemoveNode(tt.node)
			}
			after := dist.Assignments(keys)

			changes := 0
			for key, node := range before {
				if after[key] != node {
					changes++
					if tt.operation == "add" && after[key] != tt.node {
						t.Errorf("%s moved between surviving nodes %s -> %s", key, node, after[key])
					}
					if tt.operation == "remove" && node != tt.node {
						t.Errorf("%s moved off surviving node %s", key, node)
					}
				}
			}

			actual := float64(changes) / float64(len(keys))
			if actual != predicted {
				t.Errorf("predicted churn %.2f, actual %.2f", predicted, actual)
			}
			if actual < 0.05 || actual > 0.4 {
				t.Errorf("churn %.2f outside expected range (0.05-0.4)", actual)
			}
		})
	}
}

func TestDistributor_KeysFor(t *testing.T) {
	dist := NewDistributor(500)
	dist.AddNode("instance-1")
	dist.AddNode("instance-2")

	keys := []string{"studio-a", "studio-b", "studio-c", "studio-d", "studio-e"}
	owned := dist.KeysFor("instance-1", keys)
	for _, key := range owned {
		node, _ := dist.Owner(key)
		if node != "instance-1" {
			t.Errorf("%s reported for instance-1 but owned by %s", key, node)
		}
	}
	if len(owned)+len(dist.KeysFor("instance-2", keys)) != len(keys) {
		t.Error("every key must have exactly one owner")
	}
}

func TestDistributor_NodesSorted(t *testing.T) {
	dist := NewDistributor(50)
	dist.AddNode("lane-2")
	dist.AddNode("lane-0")
	dist.AddNode("lane-1")
	dist.AddNode("lane-1")

	nodes := dist.Nodes()
	expected := []string{"lane-0", "lane-1", "lane-2"}
	if len(nodes) != len(expected) {
		t.Fatalf("got %v, want %v", nodes, expected)
	}
	for i := range expected {
		if nodes[i] != expected[i] {
			t.Errorf("nodes[%d] = %s, want %s", i, nodes[i], expected[i])
		}
	}
}

func TestDistributor_Empty(t *testing.T) {
	dist := NewDistributor(500)
	if _, err := dist.Owner("studio-a"); !errors.Is(err, ErrNoNodes) {
		t.Errorf("expected ErrNoNodes, got %v", err)
	}
}

func BenchmarkDistributor_Owner(b *testing.B) {
	dist := NewDistributor(500)
	for i := 0; i < 10; i++ {
		dist.AddNode(fmt.Sprintf("instance-%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = dist.Owner(fmt.Sprintf("playlist:%d", i%1000))
	}
}
