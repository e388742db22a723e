package main

import (
	"os"

	"pfreg/internal/logging"
)

var (
	logger = logging.GetLogger()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
