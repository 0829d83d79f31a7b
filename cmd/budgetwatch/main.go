package main

import "github.com/ppiankov/budgetwatch/internal/cli"

func main() {
	cli.Execute()
}
