package main

import (
	"github.com/pickflow/pickflow/internal/cli"
)

func main() {
	cli.Execute()
}
