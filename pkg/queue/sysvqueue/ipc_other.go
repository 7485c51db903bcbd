//go:build !(linux && (amd64 || arm64 || riscv64 || loong64))

package sysvqueue

import (
	"errors"
	"os"
)

var errPlatform = errors.New("system v message queues are not available on this platform")

func ftok(_ string, _ byte) (int, error) {
	return 0, errPlatform
}

func openKernelQueue(_ int, _ os.FileMode) (msgQueue, error) {
	return nil, errPlatform
}
