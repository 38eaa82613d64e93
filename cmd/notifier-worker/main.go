package main

import (
	"fmt"
	"os"

	"github.com/healthlab-css/glowup-mrt/notifierworker"
)

func main() {
	if err := notifierworker.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
