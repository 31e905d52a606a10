package tree

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

// host4 is ((a,b)x,(c,d)y)r.
func host4(t *testing.T) *Tree {
	t.Helper()
	tr, err := Build("r", map[string][2]string{
		"r": {"x", "y"},
		"x": {"a", "b"},
		"y": {"c", "d"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tr
}

func names(t *Tree, ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.Name(id)
	}
	return out
}

func TestBuild(t *testing.T) {
	tr := host4(t)

	if tr.Len() != 7 {
		t.Errorf("Len() = %d, want 7", tr.Len())
	}
	if got := tr.Name(tr.Root()); got != "r" {
		t.Errorf("root = %q, want r", got)
	}
	want := []string{"a", "b", "x", "c", "d", "y", "r"}
	if got := names(tr, tr.Postorder()); !slices.Equal(got, want) {
		t.Errorf("Postorder() = %v, want %v", got, want)
	}
	for i, id := range tr.Postorder() {
		if tr.PostIndex(id) != i {
			t.Errorf("PostIndex(%s) = %d, want %d", tr.Name(id), tr.PostIndex(id), i)
		}
	}
	if got := names(tr, tr.Leaves()); !slices.Equal(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("Leaves() = %v", got)
	}
}

func TestAncestry(t *testing.T) {
	tr := host4(t)
	id := func(n string) NodeID {
		v, ok := tr.ID(n)
		if !ok {
			t.Fatalf("ID(%q) missing", n)
		}
		return v
	}

	tests := []struct {
		a, b       string
		ancestor   bool
		comparable bool
	}{
		{"r", "a", true, true},
		{"x", "a", true, true},
		{"a", "x", false, true},
		{"a", "a", true, true},
		{"x", "c", false, false},
		{"a", "b", false, false},
		{"y", "d", true, true},
	}
	for _, tt := range tests {
		if got := tr.IsAncestor(id(tt.a), id(tt.b)); got != tt.ancestor {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.ancestor)
		}
		if got := tr.Comparable(id(tt.a), id(tt.b)); got != tt.comparable {
			t.Errorf("Comparable(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.comparable)
		}
	}
}

func TestDepthHeightLevels(t *testing.T) {
	tr, err := Build("r", map[string][2]string{
		"r": {"x", "c"},
		"x": {"a", "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := func(n string) NodeID { v, _ := tr.ID(n); return v }

	if tr.Depth(id("a")) != 2 || tr.Depth(id("c")) != 1 || tr.Depth(id("r")) != 0 {
		t.Errorf("unexpected depths")
	}
	if tr.Height(id("r")) != 2 || tr.Height(id("x")) != 1 || tr.Height(id("c")) != 0 {
		t.Errorf("unexpected heights")
	}

	levels := tr.Levels()
	if len(levels) != 3 {
		t.Fatalf("len(Levels()) = %d, want 3", len(levels))
	}
	if got := names(tr, levels[0]); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Levels()[0] = %v", got)
	}
	if got := names(tr, levels[2]); !slices.Equal(got, []string{"r"}) {
		t.Errorf("Levels()[2] = %v", got)
	}
}

func TestSingleNode(t *testing.T) {
	tr, err := Build("only", nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if tr.Len() != 1 || !tr.IsLeaf(tr.Root()) {
		t.Errorf("single node tree malformed")
	}
	if len(tr.Levels()) != 1 {
		t.Errorf("len(Levels()) = %d, want 1", len(tr.Levels()))
	}
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() error
		want  error
	}{
		{
			name: "empty",
			build: func() error {
				_, err := NewBuilder().Build()
				return err
			},
			want: ErrEmptyTree,
		},
		{
			name: "duplicate",
			build: func() error {
				b := NewBuilder()
				_ = b.AddNode("a")
				return b.AddNode("a")
			},
			want: ErrDuplicateName,
		},
		{
			name: "two parents",
			build: func() error {
				b := NewBuilder()
				_ = b.AddEdge("p", "c")
				return b.AddEdge("q", "c")
			},
			want: ErrMultipleParents,
		},
		{
			name: "three children",
			build: func() error {
				b := NewBuilder()
				_ = b.AddEdge("p", "a")
				_ = b.AddEdge("p", "b")
				return b.AddEdge("p", "c")
			},
			want: ErrNotBinary,
		},
		{
			name: "unary",
			build: func() error {
				b := NewBuilder()
				_ = b.AddEdge("p", "a")
				_, err := b.Build()
				return err
			},
			want: ErrNotBinary,
		},
		{
			name: "two roots",
			build: func() error {
				b := NewBuilder()
				_ = b.AddNode("a")
				_ = b.AddNode("b")
				_, err := b.Build()
				return err
			},
			want: ErrMultipleRoots,
		},
		{
			name: "cycle",
			build: func() error {
				b := NewBuilder()
				_ = b.AddNode("r")
				_ = b.AddEdge("x", "y")
				_ = b.AddEdge("x", "z")
				_ = b.AddEdge("y", "x")
				_ = b.AddEdge("y", "w")
				_, err := b.Build()
				return err
			},
			want: ErrCycle,
		},
		{
			name: "detached entry",
			build: func() error {
				_, err := Build("r", map[string][2]string{
					"r": {"a", "b"},
					"q": {"c", "d"},
				})
				return err
			},
			want: ErrMultipleRoots,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !perrors.Is(err, perrors.ErrCodeStructural) {
				t.Errorf("code = %v, want %v", perrors.GetCode(err), perrors.ErrCodeStructural)
			}
		})
	}
}

func TestChildMapRoundTrip(t *testing.T) {
	tr := host4(t)
	again, err := Build(tr.Name(tr.Root()), tr.ChildMap())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names(tr, tr.Postorder()), names(again, again.Postorder())) {
		t.Errorf("rebuilt tree differs")
	}
}

func TestRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for n := 1; n <= 8; n++ {
		tr := Random(rng, n, "h")
		if got := len(tr.Leaves()); got != n {
			t.Errorf("Random(%d) has %d leaves", n, got)
		}
		if tr.Len() != 2*n-1 {
			t.Errorf("Random(%d) has %d nodes, want %d", n, tr.Len(), 2*n-1)
		}
	}
}
