package io_test

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/matzehuels/mprscape/pkg/io"
	"github.com/matzehuels/mprscape/pkg/recon"
)

func ExampleWriteCSV() {
	prob, err := io.ReadProblem(strings.NewReader(`{
		"host": {"root": "m0", "children": {"m0": ["m1", "m2"], "m1": ["m3", "m4"]}},
		"parasite": {"root": "n0", "children": {"n0": ["n1", "n2"], "n2": ["n3", "n4"]}},
		"tips": {"n1": "m4", "n3": "m4", "n4": "m4"}
	}`), io.FormatJSON)
	if err != nil {
		fmt.Println(err)
		return
	}
	g, err := recon.Reconcile(context.Background(), prob)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := io.WriteCSV(os.Stdout, g); err != nil {
		fmt.Println(err)
	}
	// Output:
	// parasite_node,host_node,event_type_code,child1_parasite,child1_host,child2_parasite,child2_host,frequency
	// n1,m4,C,,,,,1
	// n3,m4,C,,,,,1
	// n4,m4,C,,,,,1
	// n2,m4,D,n3,m4,n4,m4,1
	// n0,m4,D,n1,m4,n2,m4,1
}

func ExampleReadProblem_toml() {
	prob, err := io.ReadProblem(strings.NewReader(`
tips = { pa = "ha", pb = "hb" }

[host]
root = "h"
children = { h = ["ha", "hb"] }

[parasite]
root = "p"
children = { p = ["pa", "pb"] }

[costs]
duplication = 2
transfer = 3
loss = 1
`), io.FormatTOML)
	if err != nil {
		fmt.Println(err)
		return
	}
	g, err := recon.Reconcile(context.Background(), prob)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("cost:", g.MinCost(), "mprs:", g.TotalCount())
	// Output:
	// cost: 0 mprs: 1
}
