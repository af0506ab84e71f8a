package main

import "github.com/maya-1807/finance-manager/internal/cli"

func main() {
	cli.Execute()
}
