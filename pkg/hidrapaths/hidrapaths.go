// Package hidrapaths resolves where run data lives. the search path is
// assembled from environment overrides first, facility defaults last, so a
// local checkout or a debug copy of the data shadows the archive.
package hidrapaths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// overrides, in precedence order
const (
	EnvLocalPath   = "HIDRA_LOCAL_PATH"
	EnvArchivePath = "HIDRA_ARCHIVE_PATH"
	EnvDebugPath   = "HIDRA_DEBUG_PATH"
)

// facility archive root the instrument writes to
const archiveRoot = "/HFIR/HB2B"

// the combined search path, colon separated like PATH. unset or empty
// variables contribute nothing.
func SearchPath() string {
	return strings.Join(SearchDirs(), ":")
}

func SearchDirs() []string {
	dirs := []string{}
	for _, name := range []string{EnvLocalPath, EnvArchivePath, EnvDebugPath} {
		if value := os.Getenv(name); value != "" {
			dirs = append(dirs, value)
		}
	}

	return append(dirs, archiveRoot)
}

// /HFIR/HB2B/IPTS-22731/nexus/HB2B_1060.nxs.h5
func RawFileName(ipts int, runNumber int) string {
	return filepath.Join(fmt.Sprintf("IPTS-%d", ipts), "nexus", fmt.Sprintf("HB2B_%d.nxs.h5", runNumber))
}

// IPTS-22731/shared/manualreduce/HB2B_1060.h5
func ProjectFileName(ipts int, runNumber int) string {
	return filepath.Join(fmt.Sprintf("IPTS-%d", ipts), "shared", "manualreduce", fmt.Sprintf("HB2B_%d.h5", runNumber))
}

// facility-shared calibration data, maintained by the instrument team
func CalibrationDir() string {
	return filepath.Join(archiveRoot, "shared", "CALIBRATION")
}

func MaskDir() string {
	return filepath.Join(CalibrationDir(), "masks")
}

// resolves a file that may be given as a bare name relative to a shared
// directory. an existing or absolute path is kept as-is.
func LocateShared(path string, sharedDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}

	if candidate := filepath.Join(sharedDir, path); fileExists(candidate) {
		return candidate
	}

	return path
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// walks the search path and returns the first directory that actually holds
// the wanted file
func Locate(relativePath string) (string, error) {
	dirs := SearchDirs()
	for _, dir := range dirs {
		candidate := filepath.Join(dir, relativePath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found under any of %s", relativePath, strings.Join(dirs, ":"))
}

func LocateRawFile(ipts int, runNumber int) (string, error) {
	return Locate(RawFileName(ipts, runNumber))
}

func LocateProjectFile(ipts int, runNumber int) (string, error) {
	return Locate(ProjectFileName(ipts, runNumber))
}

// where a newly produced project file should be written: the first override
// directory when one is set, the archive otherwise
func OutputDir(ipts int) string {
	base := archiveRoot
	if dirs := SearchDirs(); len(dirs) > 1 {
		base = dirs[0]
	}

	return filepath.Join(base, fmt.Sprintf("IPTS-%d", ipts), "shared", "manualreduce")
}
