// Package autostart registers picheck to start at user login.
package autostart

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName is the visible name of the login item.
	AppName = "PiCheck"
	// Label is the reverse-DNS identifier used for the LaunchAgent.
	Label = "io.github.doridoridoriand.picheck"
)

// Manager toggles the login item.
type Manager interface {
	Enable() error
	Disable() error
	Enabled() (bool, error)
}

// Command is what the login item starts.
type Command struct {
	Executable string
	Args       []string
}

// CurrentCommand returns the running executable with args.
func CurrentCommand(args ...string) (Command, error) {
	exe, err := os.Executable()
	if err != nil {
		return Command{}, fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return Command{Executable: exe, Args: args}, nil
}

// FileEntry is a login item backed by a single file, used by the XDG and
// LaunchAgent implementations.
type FileEntry struct {
	Path    string
	Content []byte
}

// Enable writes the entry.
func (f *FileEntry) Enable() error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(f.Path), err)
	}
	if err := os.WriteFile(f.Path, f.Content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	return nil
}

// Disable removes the entry. A missing entry is not an error.
func (f *FileEntry) Disable() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.Path, err)
	}
	return nil
}

// Enabled reports whether the entry exists.
func (f *FileEntry) Enabled() (bool, error) {
	_, err := os.Stat(f.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// NewDesktopEntry builds the XDG autostart entry under configDir/autostart.
func NewDesktopEntry(configDir string, cmd Command) *FileEntry {
	return &FileEntry{
		Path:    filepath.Join(configDir, "autostart", "picheck.desktop"),
		Content: []byte(DesktopEntry(cmd)),
	}
}

// NewLaunchAgent builds the LaunchAgent plist under home/Library/LaunchAgents.
func NewLaunchAgent(home string, cmd Command) *FileEntry {
	return &FileEntry{
		Path:    filepath.Join(home, "Library", "LaunchAgents", Label+".plist"),
		Content: []byte(LaunchAgentPlist(cmd)),
	}
}

// DesktopEntry renders an XDG .desktop file.
func DesktopEntry(cmd Command) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=" + AppName + "\n")
	b.WriteString("Comment=Monitor SSH reachability of a Raspberry Pi\n")
	b.WriteString("Exec=" + execLine(cmd) + "\n")
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return b.String()
}

// execLine quotes arguments for the Exec key.
func execLine(cmd Command) string {
	parts := make([]string, 0, len(cmd.Args)+1)
	for _, arg := range append([]string{cmd.Executable}, cmd.Args...) {
		if arg != "" && !strings.ContainsAny(arg, " \t\"'\\$`") {
			parts = append(parts, arg)
			continue
		}
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
		parts = append(parts, `"`+r.Replace(arg)+`"`)
	}
	return strings.Join(parts, " ")
}

// LaunchAgentPlist renders a launchd property list that runs at load.
func LaunchAgentPlist(cmd Command) string {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">` + "\n")
	b.WriteString(`<plist version="1.0">` + "\n<dict>\n")
	b.WriteString("\t<key>Label</key>\n\t<string>" + escapeXML(Label) + "</string>\n")
	b.WriteString("\t<key>ProgramArguments</key>\n\t<array>\n")
	for _, arg := range append([]string{cmd.Executable}, cmd.Args...) {
		b.WriteString("\t\t<string>" + escapeXML(arg) + "</string>\n")
	}
	b.WriteString("\t</array>\n")
	b.WriteString("\t<key>RunAtLoad</key>\n\t<true/>\n")
	b.WriteString("</dict>\n</plist>\n")
	return b.String()
}

func escapeXML(value string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(value))
	return b.String()
}

// RunValue renders the quoted command stored in the Windows Run key.
func RunValue(cmd Command) string {
	parts := []string{`"` + cmd.Executable + `"`}
	for _, arg := range cmd.Args {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}
