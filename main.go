// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	"github.com/kaii789/disaggregated-systems-research-sub000/cmd"
)

func main() {
	cmd.Execute()
}
