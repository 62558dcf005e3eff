package main

import (
	"fmt"
	"os"

	"github.com/peoplebook/peoplebook/pkg/logger"
)

func main() {
	// stdout carries command output
	logger.SetOutput(os.Stderr)
	logger.Init(os.Getenv("LOG_LEVEL"))

	if err := newRootCmd(openRuntime).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
