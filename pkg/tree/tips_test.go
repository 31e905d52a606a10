package tree

import (
	"testing"

	perrors "github.com/matzehuels/mprscape/pkg/errors"
)

func TestTipMappingResolve(t *testing.T) {
	host := host4(t)
	parasite, err := Build("p", map[string][2]string{"p": {"p1", "p2"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		tips    TipMapping
		wantErr bool
	}{
		{"valid", TipMapping{"p1": "a", "p2": "a"}, false},
		{"missing leaf", TipMapping{"p1": "a"}, true},
		{"unknown parasite", TipMapping{"p1": "a", "p2": "b", "p9": "c"}, true},
		{"internal parasite", TipMapping{"p1": "a", "p2": "b", "p": "c"}, true},
		{"unknown host", TipMapping{"p1": "a", "p2": "zz"}, true},
		{"internal host", TipMapping{"p1": "a", "p2": "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tips.Resolve(host, parasite)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !perrors.Is(err, perrors.ErrCodeConfiguration) {
					t.Errorf("code = %v, want %v", perrors.GetCode(err), perrors.ErrCodeConfiguration)
				}
				return
			}
			p1, _ := parasite.ID("p1")
			a, _ := host.ID("a")
			if got[p1] != a {
				t.Errorf("Resolve()[p1] = %d, want %d", got[p1], a)
			}
			if got[parasite.Root()] != NoNode {
				t.Errorf("internal parasite node resolved to %d", got[parasite.Root()])
			}
		})
	}
}

func TestTipMappingPermute(t *testing.T) {
	m := TipMapping{"p1": "a", "p2": "b", "p3": "c"}
	got := m.Permute([]int{2, 0, 1})
	want := TipMapping{"p1": "c", "p2": "a", "p3": "b"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Permute()[%s] = %s, want %s", k, got[k], v)
		}
	}
}
