package engine

import (
	"os"
	"strconv"
	"strings"
)

// CPUTempReader is the narrow hardware seam for the optional local CPU
// temperature tag (SPEC_FULL.md §3 "Local Tag"), grounded on
// original_source/mbbridge.cpp's var_process(), which reads a millidegree
// integer from a thermal-zone sysfs file and divides by 1000.
type CPUTempReader interface {
	ReadCelsius() (float64, error)
}

// sysfsCPUTempReader reads the kernel's thermal-zone sysfs interface.
type sysfsCPUTempReader struct {
	path string
}

func newSysfsCPUTempReader() *sysfsCPUTempReader {
	return &sysfsCPUTempReader{path: "/sys/class/thermal/thermal_zone0/temp"}
}

func (r *sysfsCPUTempReader) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, err
	}
	return milli / 1000.0, nil
}
