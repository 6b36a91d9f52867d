package system

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

// Detect fills the platform family and the user directories of ctx.
// Mobile platforms keep their directories empty: native code owns storage there.
func Detect(ctx *core.SystemContext) {
	getenv := ctx.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	ctx.Family = core.FamilyFor(ctx.OS)
	if ctx.HomeDir == "" {
		ctx.HomeDir = getenv("HOME")
	}
	if ctx.User == "" {
		ctx.User = getenv("USER")
	}

	if ctx.Family == core.FamilyMobile {
		return
	}

	ctx.DataDir = detectDataDir(ctx, getenv)
	ctx.DownloadDir = detectDownloadDir(ctx, getenv)
}

func detectDataDir(ctx *core.SystemContext, getenv func(string) string) string {
	switch ctx.OS {
	case "windows":
		if dir := getenv("APPDATA"); dir != "" {
			return dir
		}
		return filepath.Join(ctx.HomeDir, "AppData", "Roaming")
	case "darwin":
		return filepath.Join(ctx.HomeDir, "Library", "Application Support")
	default:
		// XDG requires absolute paths; relative values are ignored.
		if dir := getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(ctx.HomeDir, ".local", "share")
	}
}

func detectDownloadDir(ctx *core.SystemContext, getenv func(string) string) string {
	switch ctx.OS {
	case "windows":
		if profile := getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "Downloads")
		}
		return filepath.Join(ctx.HomeDir, "Downloads")
	case "darwin":
		return filepath.Join(ctx.HomeDir, "Downloads")
	}

	if dir := getenv("XDG_DOWNLOAD_DIR"); filepath.IsAbs(dir) {
		return dir
	}

	configHome := getenv("XDG_CONFIG_HOME")
	if !filepath.IsAbs(configHome) {
		configHome = filepath.Join(ctx.HomeDir, ".config")
	}
	dirs := readUserDirs(ctx, filepath.Join(configHome, "user-dirs.dirs"))
	if dir, ok := dirs["XDG_DOWNLOAD_DIR"]; ok && dir != "" {
		dir = strings.ReplaceAll(dir, "$HOME", ctx.HomeDir)
		// xdg-user-dirs points a disabled entry at $HOME itself.
		if filepath.Clean(dir) != filepath.Clean(ctx.HomeDir) {
			return dir
		}
	}

	return filepath.Join(ctx.HomeDir, "Downloads")
}

// readUserDirs parses an xdg-user-dirs file (KEY="value" lines).
func readUserDirs(ctx *core.SystemContext, path string) map[string]string {
	dirs := make(map[string]string)
	if ctx.FS == nil {
		return dirs
	}
	f, err := ctx.FS.Open(path)
	if err != nil {
		return dirs
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if parts := strings.SplitN(line, "=", 2); len(parts) == 2 {
			dirs[parts[0]] = strings.Trim(parts[1], "\"")
		}
	}
	return dirs
}
