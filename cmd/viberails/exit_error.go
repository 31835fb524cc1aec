// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/viberails/viberails/pkg/types"
)

// ExitError carries the exit class of a failed command up to Run, which turns
// it into the process status: types.ExitUserError for problems the user can
// fix, types.ExitFailure for the rest. Err is what fang prints.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("viberails exited with status %s", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
