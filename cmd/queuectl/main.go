package main

import (
	"os"

	"github.com/architeacher/svc-msg-queue/internal/cmd/queuectl"
)

func main() {
	if err := queuectl.NewRootCommand(queuectl.RuntimeConnector).Execute(); err != nil {
		os.Exit(1)
	}
}
