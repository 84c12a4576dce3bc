package hidrapaths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestSearchPathOrdering(t *testing.T) {
	t.Setenv(EnvLocalPath, "/home/user/hidra-data")
	t.Setenv(EnvArchivePath, "")
	t.Setenv(EnvDebugPath, "/tmp/debug")

	// empty variables are skipped, defaults come last
	assert.EqualString(t, SearchPath(), "/home/user/hidra-data:/tmp/debug:/HFIR/HB2B")
}

func TestSearchPathDefaultsOnly(t *testing.T) {
	t.Setenv(EnvLocalPath, "")
	t.Setenv(EnvArchivePath, "")
	t.Setenv(EnvDebugPath, "")

	assert.EqualString(t, SearchPath(), "/HFIR/HB2B")
}

func TestFileNames(t *testing.T) {
	assert.EqualString(t, RawFileName(22731, 1060), "IPTS-22731/nexus/HB2B_1060.nxs.h5")
	assert.EqualString(t, ProjectFileName(22731, 1060), "IPTS-22731/shared/manualreduce/HB2B_1060.h5")
}

func TestLocate(t *testing.T) {
	dataDir := t.TempDir()

	t.Setenv(EnvLocalPath, dataDir)
	t.Setenv(EnvArchivePath, "")
	t.Setenv(EnvDebugPath, "")

	relative := RawFileName(22731, 1060)
	assert.Ok(t, os.MkdirAll(filepath.Join(dataDir, filepath.Dir(relative)), 0755))
	assert.Ok(t, os.WriteFile(filepath.Join(dataDir, relative), []byte("raw"), 0644))

	found, err := LocateRawFile(22731, 1060)
	assert.Ok(t, err)
	assert.EqualString(t, found, filepath.Join(dataDir, relative))

	_, err = LocateRawFile(22731, 9999)
	assert.Assert(t, err != nil)
}

func TestLocateShared(t *testing.T) {
	sharedDir := t.TempDir()
	assert.Ok(t, os.WriteFile(filepath.Join(sharedDir, "slit.json"), []byte("{}"), 0644))

	// bare name found under the shared dir
	assert.EqualString(t, LocateShared("slit.json", sharedDir), filepath.Join(sharedDir, "slit.json"))

	// absolute paths and misses are returned untouched
	assert.EqualString(t, LocateShared("/etc/hosts", sharedDir), "/etc/hosts")
	assert.EqualString(t, LocateShared("nope.json", sharedDir), "nope.json")
}

func TestOutputDir(t *testing.T) {
	t.Setenv(EnvLocalPath, "/scratch")
	t.Setenv(EnvArchivePath, "")
	t.Setenv(EnvDebugPath, "")

	assert.EqualString(t, OutputDir(22731), "/scratch/IPTS-22731/shared/manualreduce")

	t.Setenv(EnvLocalPath, "")
	assert.EqualString(t, OutputDir(22731), "/HFIR/HB2B/IPTS-22731/shared/manualreduce")
}
