package main

import (
	"fmt"
	"os"

	"github.com/stemsi/exstem-proctor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "proctorctl:", err)
		os.Exit(1)
	}
}
