package main

import (
	"github.com/dyike/OptiFolio/internal/cli"
)

func main() {
	cli.Run()
}
