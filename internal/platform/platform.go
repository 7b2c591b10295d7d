package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Platform represents the detected platform
type Platform string

const (
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWSL1    Platform = "wsl1"
	PlatformWSL2    Platform = "wsl2"
	PlatformWindows Platform = "windows"
	PlatformUnknown Platform = "unknown"
)

var (
	detectOnce       sync.Once
	detectedPlatform Platform
)

// Detect returns the current platform, caching the result
func Detect() Platform {
	detectOnce.Do(func() {
		detectedPlatform = detectPlatform()
	})
	return detectedPlatform
}

func detectPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformMacOS
	case "windows":
		return PlatformWindows
	case "linux":
		return detectLinuxOrWSL()
	default:
		return PlatformUnknown
	}
}

func detectLinuxOrWSL() Platform {
	if os.Getenv("WSL_DISTRO_NAME") != "" {
		return detectWSLVersion()
	}
	procVersion, err := os.ReadFile("/proc/version")
	if err != nil {
		return PlatformLinux
	}
	if strings.Contains(strings.ToLower(string(procVersion)), "microsoft") {
		return detectWSLVersion()
	}
	return PlatformLinux
}

// detectWSLVersion distinguishes between WSL1 and WSL2
func detectWSLVersion() Platform {
	if procVersion, err := os.ReadFile("/proc/version"); err == nil {
		v := string(procVersion)
		if strings.Contains(v, "microsoft-standard") {
			return PlatformWSL2
		}
		if strings.Contains(v, "Microsoft") {
			return PlatformWSL1
		}
	}
	// /run/WSL exists only in WSL2
	if _, err := os.Stat("/run/WSL"); err == nil {
		return PlatformWSL2
	}
	return PlatformWSL1
}

// IsWSL returns true if running in any WSL environment
func IsWSL() bool {
	p := Detect()
	return p == PlatformWSL1 || p == PlatformWSL2
}

// String returns a human-readable platform name
func (p Platform) String() string {
	switch p {
	case PlatformMacOS:
		return "macOS"
	case PlatformLinux:
		return "Linux"
	case PlatformWSL1:
		return "WSL1"
	case PlatformWSL2:
		return "WSL2"
	case PlatformWindows:
		return "Windows"
	default:
		return "Unknown"
	}
}

// CheckFsnotifySupport reports whether the filesystem holding path delivers
// change events reliably. It returns a warning for 9p, NFS, CIFS and SSHFS
// mounts and "" otherwise.
func CheckFsnotifySupport(path string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	mounts, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return fsnotifyWarning(path, string(mounts))
}

func fsnotifyWarning(path, mounts string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ""
	}

	// Longest mountpoint containing the path wins.
	var matchedMount, fsType string
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint := fields[1]
		if !withinMount(absPath, mountPoint) || len(mountPoint) <= len(matchedMount) {
			continue
		}
		matchedMount, fsType = mountPoint, fields[2]
	}

	switch {
	case fsType == "9p":
		return "Archive on 9p mount (WSL2 Windows filesystem): change watching disabled. Press R to reload."
	case fsType == "nfs" || fsType == "nfs4":
		return "Archive on NFS mount: change watching may be unreliable. Press R to reload."
	case fsType == "cifs" || fsType == "smbfs":
		return "Archive on CIFS/SMB mount: change watching may be unreliable. Press R to reload."
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "Archive on SSHFS mount: change watching disabled. Press R to reload."
	}
	return ""
}

func withinMount(path, mountPoint string) bool {
	if mountPoint == "/" {
		return true
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}

// DetectTerminal names the terminal emulator from its environment.
func DetectTerminal() string {
	termProgram := os.Getenv("TERM_PROGRAM")
	switch {
	case termProgram == "WarpTerminal" || os.Getenv("WARP_IS_LOCAL_SHELL_SESSION") != "":
		return "warp"
	case termProgram == "iTerm.app" || os.Getenv("ITERM_SESSION_ID") != "":
		return "iterm2"
	case os.Getenv("TERM") == "xterm-kitty" || os.Getenv("KITTY_WINDOW_ID") != "":
		return "kitty"
	case os.Getenv("ALACRITTY_SOCKET") != "" || os.Getenv("ALACRITTY_LOG") != "":
		return "alacritty"
	case termProgram == "vscode" || os.Getenv("VSCODE_INJECTION") != "":
		return "vscode"
	case os.Getenv("WT_SESSION") != "":
		return "windows-terminal"
	case termProgram == "WezTerm" || os.Getenv("WEZTERM_PANE") != "":
		return "wezterm"
	case termProgram == "Apple_Terminal":
		return "apple-terminal"
	case termProgram != "":
		return strings.ToLower(termProgram)
	}
	return "unknown"
}

// SupportsOSC52 reports whether the terminal accepts OSC 52 clipboard writes.
// Unknown terminals are assumed to.
func SupportsOSC52() bool {
	switch DetectTerminal() {
	case "apple-terminal":
		return false
	}
	return os.Getenv("TERM") != "dumb"
}
