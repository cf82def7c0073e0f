//go:build linux

package bluetooth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"kpos-print/internal/printer"
)

const rfcommSlots = 10

// checkRFCOMMInstalled verifies the rfcomm binary is available
func checkRFCOMMInstalled() error {
	if _, err := exec.LookPath("rfcomm"); err != nil {
		return fmt.Errorf("rfcomm not found, install bluez: %w", printer.ErrNotSupported)
	}
	return nil
}

// privilegeHelper picks the elevation tool for rfcomm: pkexec works from a
// desktop session, sudo -n only when a rule allows it without a password
func privilegeHelper() string {
	if os.Geteuid() == 0 {
		return "root"
	}
	if _, err := exec.LookPath("pkexec"); err == nil {
		return "pkexec"
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return "sudo"
	}
	return ""
}

func privileged(ctx context.Context, helper string, args ...string) *exec.Cmd {
	switch helper {
	case "pkexec":
		return exec.CommandContext(ctx, "pkexec", append([]string{"rfcomm"}, args...)...)
	case "sudo":
		return exec.CommandContext(ctx, "sudo", append([]string{"-n", "rfcomm"}, args...)...)
	default:
		return exec.CommandContext(ctx, "rfcomm", args...)
	}
}

// freeRFCOMMDevice finds an unbound /dev/rfcommN
func freeRFCOMMDevice() (string, error) {
	for i := 0; i < rfcommSlots; i++ {
		path := "/dev/rfcomm" + strconv.Itoa(i)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		return path, nil
	}
	return "", fmt.Errorf("no free rfcomm device: %w", ErrRFCOMMFailed)
}

// dial binds an RFCOMM TTY to address and opens it as a serial port
func (b *Binding) dial(ctx context.Context, address string) (*link, error) {
	objs, err := objects(ctx)
	if err != nil {
		return nil, err
	}
	adapter, powered, err := objs.adapter()
	if err != nil {
		return nil, err
	}
	if !powered {
		return nil, fmt.Errorf("connect %s: %w", address, printer.ErrBluetoothDisabled)
	}
	if _, ok := objs.find(adapter, address); !ok {
		return nil, fmt.Errorf("connect %s: %w", address, printer.ErrDeviceNotFound)
	}

	if err := checkRFCOMMInstalled(); err != nil {
		return nil, err
	}
	helper := privilegeHelper()
	if helper == "" {
		return nil, fmt.Errorf("%w: %w", printer.ErrPermissionDenied, ErrPrivilegeRequired)
	}
	path, err := freeRFCOMMDevice()
	if err != nil {
		return nil, err
	}

	// rfcomm connect holds the channel open for as long as it runs, so it
	// outlives ctx and is stopped by the link's release
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := privileged(procCtx, helper, "connect", path, address, strconv.Itoa(b.channel))
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rfcomm stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start rfcomm: %w: %w", ErrRFCOMMFailed, err)
	}
	exited := make(chan error, 1)
	go b.logOutput(address, stderr)
	go func() { exited <- cmd.Wait() }()

	release := func() error {
		cancel()
		out, err := privileged(context.Background(), helper, "release", path).CombinedOutput()
		if err != nil && !strings.Contains(string(out), "No such device") {
			return fmt.Errorf("rfcomm release %s: %w", path, err)
		}
		return nil
	}

	if err := waitForDevice(ctx, path, exited); err != nil {
		release()
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}

	port, err := openPort(path)
	if err != nil {
		release()
		return nil, err
	}
	return &link{
		address: address,
		path:    path,
		port:    port,
		release: release,
		alive: func() bool {
			select {
			case <-exited:
				return false
			default:
			}
			_, err := os.Stat(path)
			return err == nil
		},
	}, nil
}

// waitForDevice polls until path exists, rfcomm exits or ctx ends
func waitForDevice(ctx context.Context, path string, exited <-chan error) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-exited:
			if err == nil {
				err = errors.New("rfcomm exited")
			}
			if exitErr := new(exec.ExitError); errors.As(err, &exitErr) && exitErr.ExitCode() == 126 {
				return fmt.Errorf("%w: authorization dismissed", printer.ErrPermissionDenied)
			}
			return fmt.Errorf("%w: %w", ErrRFCOMMFailed, err)
		case <-ticker.C:
		}
	}
}

func (b *Binding) logOutput(address string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.log.Debug("rfcomm", "address", address, "msg", scanner.Text())
	}
}
