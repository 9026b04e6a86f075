package main

import (
	"github.com/onflow/batch-verifier/cmd/batchverify/cmd"
)

func main() {
	cmd.Execute()
}
