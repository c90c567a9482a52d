package runtime

import "github.com/pithecene-io/svgswap/types"

// Process exit codes.
const (
	ExitCodeSuccess = 0 // every candidate processed (including none)
	ExitCodeFailure = 1 // batch aborted or a candidate failed
	ExitCodeConfig  = 2 // invalid configuration or usage
)

// ExitCode maps a batch status to the process exit code.
func ExitCode(status types.BatchStatus) int {
	if status == types.BatchSuccess {
		return ExitCodeSuccess
	}
	return ExitCodeFailure
}
