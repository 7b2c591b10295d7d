// Package clipboard copies text to the system clipboard, falling back to the
// OSC 52 terminal escape sequence when no native tool is available.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/asheshgoplani/archive-deck/internal/platform"
)

// ErrEmpty is returned when there is nothing to copy.
var ErrEmpty = errors.New("no content to copy")

// CopyResult describes a successful copy.
type CopyResult struct {
	Method    string // "pbcopy", "xclip", "osc52", ...
	ByteSize  int
	LineCount int
}

// Copy copies text to the system clipboard. The native clipboard tool is
// tried first, then OSC 52 when the terminal supports it.
func Copy(text string) (*CopyResult, error) {
	if text == "" {
		return nil, ErrEmpty
	}
	res := &CopyResult{ByteSize: len(text), LineCount: countLines(text)}

	method, err := copyNative(text)
	if err == nil {
		res.Method = method
		return res, nil
	}

	if platform.SupportsOSC52() {
		if err := copyOSC52(text); err != nil {
			return nil, fmt.Errorf("clipboard: osc52: %w", err)
		}
		res.Method = "osc52"
		return res, nil
	}
	return nil, fmt.Errorf("clipboard: no method available (install pbcopy, xclip, xsel, or wl-copy): %w", err)
}

func copyNative(text string) (string, error) {
	switch p := platform.Detect(); p {
	case platform.PlatformMacOS:
		return "pbcopy", runClipCmd("pbcopy", nil, text)

	case platform.PlatformWSL1, platform.PlatformWSL2:
		return "clip.exe", runClipCmd("clip.exe", nil, text)

	case platform.PlatformLinux:
		// Wayland takes priority over X11
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if path, err := exec.LookPath("wl-copy"); err == nil {
				return "wl-copy", runClipCmd(path, nil, text)
			}
		}
		if path, err := exec.LookPath("xclip"); err == nil {
			return "xclip", runClipCmd(path, []string{"-selection", "clipboard"}, text)
		}
		if path, err := exec.LookPath("xsel"); err == nil {
			return "xsel", runClipCmd(path, []string{"--clipboard", "--input"}, text)
		}
		return "", errors.New("no clipboard command found")

	default:
		return "", fmt.Errorf("unsupported platform: %s", p)
	}
}

func runClipCmd(name string, args []string, text string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// copyOSC52 writes the escape sequence to /dev/tty so a redirected stdout
// does not swallow it.
func copyOSC52(text string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()
	return writeOSC52(tty, text, os.Getenv("TMUX") != "")
}

func writeOSC52(w io.Writer, text string, inTmux bool) error {
	_, err := io.WriteString(w, generateOSC52(base64.StdEncoding.EncodeToString([]byte(text)), inTmux))
	return err
}

// generateOSC52 builds the OSC 52 sequence, wrapped in a DCS passthrough
// inside tmux.
func generateOSC52(base64Content string, inTmux bool) string {
	osc := "\x1b]52;c;" + base64Content + "\x07"
	if inTmux {
		return "\x1bPtmux;\x1b" + osc + "\x1b\\"
	}
	return osc
}

// countLines counts lines; a trailing newline does not add one.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
