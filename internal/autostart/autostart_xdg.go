//go:build !windows && !darwin

package autostart

import (
	"fmt"
	"os"
)

// New returns the XDG autostart manager for cmd.
func New(cmd Command) (Manager, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return NewDesktopEntry(dir, cmd), nil
}
