package main

import (
	"os"

	"github.com/finsight-ai/finsight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
