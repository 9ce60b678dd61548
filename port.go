package serial

import (
	"fmt"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Port is a serial device descriptor with blocking, timeout-bounded read and
// write operations. A Port exclusively owns its descriptor; concurrent calls
// against the same Port are not internally synchronized; callers must
// serialize their own access.
type Port struct {
	fd        int
	file      *os.File
	closeOnce sync.Once
}

// Open opens a serial device using the provided Config and returns a Port.
// The device is configured for raw, low-latency, non-buffered operation.
func Open(cfg Config) (*Port, error) {
	fd, err := syscall.Open(cfg.Device, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0666)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8

	// Baud rate
	baud := baudToUnix(cfg.BaudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// Set VMIN=1, VTIME=0 for immediate, non-blocking reads
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	// Turn back into blocking mode now that config is done
	syscall.SetNonblock(fd, false)

	return &Port{
		fd:   fd,
		file: os.NewFile(uintptr(fd), cfg.Device),
	}, nil
}

// NewPort wraps an already-open, already-configured descriptor. The Port
// takes ownership: Close closes the descriptor.
func NewPort(fd int) *Port {
	return &Port{fd: fd}
}

// Fd returns the underlying descriptor, e.g. for attaching a Watcher.
func (p *Port) Fd() int { return p.fd }

// Close closes the serial device. Safe to call multiple times; subsequent
// calls are no-ops.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.file != nil {
			err = p.file.Close()
		} else {
			err = syscall.Close(p.fd)
		}
	})
	return err
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	case 460800:
		return unix.B460800
	case 921600:
		return unix.B921600
	default:
		return unix.B115200 // fallback
	}
}
