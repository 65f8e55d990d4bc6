package main

import (
	"os"

	jobflexcmder "github.com/KimYongKuk/commercial-analysis/cmd/jobflex"
)

func main() {
	cmd := jobflexcmder.NewJobflexCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
