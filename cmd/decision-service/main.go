package main

import (
	"fmt"
	"os"

	"github.com/healthlab-css/glowup-mrt/decisionservice"
)

func main() {
	if err := decisionservice.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
