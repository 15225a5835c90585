// Package logfinder locates the Quake Live console log (qconsole.log).
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// EnvLogDir is the environment variable name for specifying the log directory.
const EnvLogDir = "QLCONSOLE_LOGDIR"

// LogFilePattern matches console logs inside a game directory. The game writes
// qconsole.log; rotated or per-port copies keep the prefix.
const LogFilePattern = "qconsole*.log"

// Sentinel errors.
var (
	ErrLogDirNotFound = errors.New("log directory not found")
	ErrNoLogFiles     = errors.New("no log files found")
)

// DefaultLogDirs returns glob patterns for candidate baseq3 directories in
// priority order. Quake Live keeps one home directory per Steam account or,
// for dedicated servers, per net_port.
func DefaultLogDirs() []string {
	var roots []string

	if runtime.GOOS == "windows" {
		for _, env := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
			if pf := os.Getenv(env); pf != "" {
				roots = append(roots, filepath.Join(pf, "Steam", "steamapps", "common", "Quake Live"))
			}
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots,
			filepath.Join(home, ".quakelive"),
			filepath.Join(home, ".steam", "steam", "steamapps", "common", "Quake Live"),
			filepath.Join(home, ".local", "share", "Steam", "steamapps", "common", "Quake Live"),
		)
	}

	dirs := make([]string, 0, len(roots)*2)
	for _, r := range roots {
		dirs = append(dirs,
			filepath.Join(r, "*", "baseq3"),
			filepath.Join(r, "baseq3"),
		)
	}
	return dirs
}

// FindLogDir returns the directory holding the console log.
//
// Priority:
//  1. explicit (if non-empty)
//  2. QLCONSOLE_LOGDIR environment variable
//  3. Auto-detect from DefaultLogDirs(), newest log first
//
// An explicit or environment directory only has to exist; it may not contain
// a log yet. Auto-detected directories must contain one.
// The returned path has symlinks resolved for consistency.
func FindLogDir(explicit string) (string, error) {
	if explicit != "" {
		if resolved := resolveDir(explicit); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: specified directory is invalid", ErrLogDirNotFound)
	}

	if envDir := os.Getenv(EnvLogDir); envDir != "" {
		if resolved := resolveDir(envDir); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %s environment variable points to invalid directory", ErrLogDirNotFound, EnvLogDir)
	}

	var candidates []logCandidate
	for _, glob := range DefaultLogDirs() {
		matches, err := filepath.Glob(glob)
		if err != nil {
			continue
		}
		for _, dir := range matches {
			resolved := resolveDir(dir)
			if resolved == "" {
				continue
			}
			latest, err := latestLog(resolved)
			if err != nil {
				continue
			}
			candidates = append(candidates, logCandidate{path: resolved, modTime: latest.modTime})
		}
	}
	if len(candidates) == 0 {
		return "", ErrLogDirNotFound
	}

	// Several accounts or server ports: follow the one written most recently.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})
	return candidates[0].path, nil
}

// logCandidate holds a path and its cached modification time.
// This avoids race conditions where files are deleted between stat and sort.
type logCandidate struct {
	path    string
	modTime int64
}

// FindLatestLogFile returns the path to the most recently modified console
// log in dir.
//
// Returns ErrNoLogFiles if no log files are found.
func FindLatestLogFile(dir string) (string, error) {
	c, err := latestLog(dir)
	if err != nil {
		return "", err
	}
	return c.path, nil
}

func latestLog(dir string) (logCandidate, error) {
	matches, err := filepath.Glob(filepath.Join(dir, LogFilePattern))
	if err != nil {
		return logCandidate{}, fmt.Errorf("globbing log files: %w", err)
	}

	// Stat files once and cache results.
	candidates := make([]logCandidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Lstat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, logCandidate{
			path:    m,
			modTime: info.ModTime().UnixNano(),
		})
	}
	if len(candidates) == 0 {
		return logCandidate{}, ErrNoLogFiles
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime != candidates[j].modTime {
			return candidates[i].modTime > candidates[j].modTime
		}
		return candidates[i].path < candidates[j].path
	})
	return candidates[0], nil
}

// resolveDir resolves symlinks and checks that dir is a directory.
// Returns the resolved path if valid, empty string otherwise.
func resolveDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	return resolved
}
