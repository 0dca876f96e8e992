package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileEntryLifecycle(t *testing.T) {
	dir := t.TempDir()
	entry := NewDesktopEntry(dir, Command{Executable: "/usr/local/bin/picheck"})

	if enabled, err := entry.Enabled(); err != nil || enabled {
		t.Fatalf("expected disabled initially, got %v %v", enabled, err)
	}
	if err := entry.Enable(); err != nil {
		t.Fatalf("Enable error: %v", err)
	}
	if enabled, err := entry.Enabled(); err != nil || !enabled {
		t.Fatalf("expected enabled, got %v %v", enabled, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "autostart", "picheck.desktop"))
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if !strings.Contains(string(data), "Exec=/usr/local/bin/picheck\n") {
		t.Fatalf("unexpected entry:\n%s", data)
	}
	if err := entry.Disable(); err != nil {
		t.Fatalf("Disable error: %v", err)
	}
	if err := entry.Disable(); err != nil {
		t.Fatalf("second Disable error: %v", err)
	}
	if enabled, _ := entry.Enabled(); enabled {
		t.Fatalf("expected disabled after Disable")
	}
}

func TestDesktopEntryQuotesArguments(t *testing.T) {
	got := execLine(Command{
		Executable: "/home/pi user/bin/picheck",
		Args:       []string{"--config", "/home/pi user/$cfg.yaml", "--no-ui"},
	})
	want := `"/home/pi user/bin/picheck" --config "/home/pi user/\$cfg.yaml" --no-ui`
	if got != want {
		t.Fatalf("unexpected exec line:\n got %s\nwant %s", got, want)
	}
}

func TestDesktopEntryFields(t *testing.T) {
	entry := DesktopEntry(Command{Executable: "/usr/bin/picheck"})
	for _, want := range []string{"[Desktop Entry]\n", "Type=Application\n", "Name=PiCheck\n", "X-GNOME-Autostart-enabled=true\n"} {
		if !strings.Contains(entry, want) {
			t.Fatalf("expected %q in entry:\n%s", want, entry)
		}
	}
}

func TestLaunchAgentPlist(t *testing.T) {
	entry := NewLaunchAgent("/Users/pi", Command{Executable: "/Applications/PiCheck & Co/picheck", Args: []string{"--no-ui"}})
	if entry.Path != "/Users/pi/Library/LaunchAgents/"+Label+".plist" {
		t.Fatalf("unexpected path %s", entry.Path)
	}
	plist := string(entry.Content)
	for _, want := range []string{
		"<key>Label</key>\n\t<string>" + Label + "</string>",
		"<string>/Applications/PiCheck &amp; Co/picheck</string>",
		"<string>--no-ui</string>",
		"<key>RunAtLoad</key>\n\t<true/>",
	} {
		if !strings.Contains(plist, want) {
			t.Fatalf("expected %q in plist:\n%s", want, plist)
		}
	}
}

func TestRunValue(t *testing.T) {
	got := RunValue(Command{Executable: `C:\Program Files\PiCheck\picheck.exe`, Args: []string{"--config", `C:\My Settings\picheck.yaml`}})
	want := `"C:\Program Files\PiCheck\picheck.exe" --config "C:\My Settings\picheck.yaml"`
	if got != want {
		t.Fatalf("unexpected run value:\n got %s\nwant %s", got, want)
	}
}

func TestCurrentCommand(t *testing.T) {
	cmd, err := CurrentCommand("--no-ui")
	if err != nil {
		t.Fatalf("CurrentCommand error: %v", err)
	}
	if cmd.Executable == "" || len(cmd.Args) != 1 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}
