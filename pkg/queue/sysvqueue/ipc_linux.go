//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package sysvqueue

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/architeacher/svc-msg-queue/pkg/queue"
)

// mtypeSize is the size of the C long that prefixes every message buffer.
const mtypeSize = 8

// ftok derives a kernel key the way ftok(3) does: inode and device of path plus the id byte.
func ftok(path string, id byte) (int, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	key := uint32(st.Ino&0xffff) | uint32(st.Dev&0xff)<<16 | uint32(id)<<24

	return int(int32(key)), nil
}

type kernelQueue struct {
	id int
}

func openKernelQueue(key int, perms os.FileMode) (msgQueue, error) {
	flags := unix.IPC_CREAT | int(perms.Perm())

	id, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(flags), 0)
	if errno != 0 {
		return nil, fmt.Errorf("msgget: %w", errno)
	}

	return &kernelQueue{id: int(id)}, nil
}

func (k *kernelQueue) send(mtype int64, data []byte, wait bool) error {
	buf := make([]byte, mtypeSize+len(data))
	binary.NativeEndian.PutUint64(buf[:mtypeSize], uint64(mtype))
	copy(buf[mtypeSize:], data)

	flags := 0
	if !wait {
		flags |= unix.IPC_NOWAIT
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_MSGSND,
		uintptr(k.id),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(data)),
		uintptr(flags),
		0, 0,
	)

	switch {
	case errno == 0:
		return nil
	case errors.Is(errno, unix.EAGAIN):
		return queue.ErrQueueFull
	case errors.Is(errno, unix.EINTR):
		return errInterrupted
	default:
		return fmt.Errorf("msgsnd: %w", errno)
	}
}

func (k *kernelQueue) receive(maxSize int, mtype int64, wait bool) ([]byte, error) {
	buf := make([]byte, mtypeSize+maxSize)

	flags := 0
	if !wait {
		flags |= unix.IPC_NOWAIT
	}

	n, _, errno := unix.Syscall6(
		unix.SYS_MSGRCV,
		uintptr(k.id),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(maxSize),
		uintptr(mtype),
		uintptr(flags),
		0,
	)

	switch {
	case errno == 0:
		return buf[mtypeSize : mtypeSize+int(n)], nil
	case errors.Is(errno, unix.ENOMSG):
		return nil, queue.ErrEmpty
	case errors.Is(errno, unix.EINTR):
		return nil, errInterrupted
	case errors.Is(errno, unix.E2BIG):
		return nil, fmt.Errorf("msgrcv: message exceeds %d bytes: %w", maxSize, errno)
	default:
		return nil, fmt.Errorf("msgrcv: %w", errno)
	}
}

func (k *kernelQueue) remove() error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(k.id), uintptr(unix.IPC_RMID), 0)
	if errno != 0 {
		return fmt.Errorf("msgctl: %w", errno)
	}

	return nil
}
