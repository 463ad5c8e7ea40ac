package main

import (
	"chainradar/internal/cli"
)

func main() {
	cli.Execute()
}
