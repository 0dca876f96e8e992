//go:build darwin

package autostart

import (
	"fmt"
	"os"
)

// New returns the LaunchAgent manager for cmd.
func New(cmd Command) (Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home dir: %w", err)
	}
	return NewLaunchAgent(home, cmd), nil
}
