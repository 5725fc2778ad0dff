//go:build windows

package speech

import "os"

// Windows has no SIGSTOP equivalent for a console process.
func suspendProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}

func continueProcess(_ *os.Process) error {
	return ErrPauseUnsupported
}
