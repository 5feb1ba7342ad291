package cardio

import (
	"path/filepath"
	"runtime"

	"github.com/blang/semver"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// NumCPU is the number of cores available to this process for parallel kernels.
var NumCPU = runtime.NumCPU()

// Version is the semantic version of this cardiowave build.
var Version = semver.MustParse("0.3.0")

// ConvertToAbsolute makes a relative path absolute with respect to baseDir.
// An absolute path is returned unchanged.
func ConvertToAbsolute(path, baseDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(baseDir, path))
}
