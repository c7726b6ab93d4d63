// Package verify runs the installation checklist: environment
// detection, external tool probes, and dataset integrity checks.
package verify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
)

// Environment describes the detected host
type Environment struct {
	OS     string
	Arch   string
	HasGPU bool
	// IsMacARM marks Apple Silicon, which has its own accelerated path
	// downstream
	IsMacARM bool
}

// Kind classifies the environment for reporting
func (e Environment) Kind() string {
	switch {
	case e.HasGPU:
		return "gpu"
	case e.IsMacARM:
		return "m1"
	default:
		return "cpu"
	}
}

// DetectEnvironment probes the host. GPU detection tries nvidia-smi
// first and falls back to nvcc; both absent means no CUDA.
func DetectEnvironment() Environment {
	return Environment{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		HasGPU:   checkGPUSupport(),
		IsMacARM: runtime.GOOS == "darwin" && runtime.GOARCH == "arm64",
	}
}

func checkGPUSupport() bool {
	out, err := exec.Command("nvidia-smi", "--query-gpu=gpu_name", "--format=csv,noheader").Output()
	if err == nil {
		return strings.Contains(string(out), "NVIDIA")
	}

	// Fallback: a working nvcc implies a CUDA toolchain
	if err := exec.Command("nvcc", "--version").Run(); err == nil {
		return true
	}
	return false
}

// CheckResult is one line of the verification report
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// Section groups related checks
type Section struct {
	Name    string
	Results []CheckResult
}

// Passed counts the successful checks in the section
func (s Section) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.OK {
			n++
		}
	}
	return n
}

// Report is the outcome of a full verification run
type Report struct {
	Env      Environment
	Sections []Section
}

// OK reports whether every check passed
func (r *Report) OK() bool {
	for _, s := range r.Sections {
		if s.Passed() != len(s.Results) {
			return false
		}
	}
	return true
}

// Failures counts failed checks across all sections
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Results) - s.Passed()
	}
	return n
}

// requiredTools are the external audio binaries the course workflow
// needs on PATH; the audio decoder shells out to ffmpeg
var requiredTools = []string{"ffmpeg", "ffprobe"}

// CheckTools verifies the required external binaries are on PATH,
// capturing a version line where available
func CheckTools() []CheckResult {
	results := make([]CheckResult, 0, len(requiredTools))
	for _, tool := range requiredTools {
		path, err := exec.LookPath(tool)
		if err != nil {
			results = append(results, CheckResult{Name: tool, OK: false, Detail: "not found on PATH"})
			continue
		}

		detail := path
		if out, verr := exec.Command(tool, "-version").Output(); verr == nil {
			if line, _, found := strings.Cut(string(out), "\n"); found {
				detail = strings.TrimSpace(line)
			}
		}
		results = append(results, CheckResult{Name: tool, OK: true, Detail: detail})
	}
	return results
}

// CheckDatasets verifies every registered dataset directory
func CheckDatasets(cfg *config.Config) []CheckResult {
	datasets := config.AllDatasets()
	results := make([]CheckResult, 0, len(datasets))
	for _, dt := range datasets {
		ok, missing := cfg.VerifyDataset(dt)
		detail := cfg.DatasetPath(dt)
		if !ok {
			detail = fmt.Sprintf("missing %v", missing)
		}
		results = append(results, CheckResult{Name: string(dt), OK: ok, Detail: detail})
	}
	return results
}

// Run executes the complete verification
func Run(cfg *config.Config) *Report {
	env := DetectEnvironment()

	envResults := []CheckResult{
		{Name: "os/arch", OK: true, Detail: env.OS + "/" + env.Arch},
		{Name: "accelerator", OK: true, Detail: env.Kind()},
	}

	return &Report{
		Env: env,
		Sections: []Section{
			{Name: "Environment", Results: envResults},
			{Name: "Tools", Results: CheckTools()},
			{Name: "Datasets", Results: CheckDatasets(cfg)},
		},
	}
}
