package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external program the pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional tools back a provider that has a built-in fallback.
	Optional bool
}

// Status is the outcome of looking up one Requirement.
type Status struct {
	Requirement
	Available bool
	// Path is the resolved executable, empty when lookup failed.
	Path   string
	Detail string
}

// Check resolves req on PATH.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

// CheckBinaries checks every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}
