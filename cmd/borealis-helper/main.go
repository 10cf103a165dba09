package main

import (
	"os"

	"borealis/internal/helper"
)

func main() {
	os.Exit(helper.New().Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
