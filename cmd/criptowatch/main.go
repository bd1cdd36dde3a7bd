package main

import (
	"github.com/carlos-olivera/data-bs-cripto/internal/cli"
)

func main() {
	cli.Execute()
}
