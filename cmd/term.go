package cmd

import (
	"os"

	"golang.org/x/term"
)

// termSize reads the controlling terminal's dimensions.
func termSize() (cols, rows int, err error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// rawMode puts stdin into raw mode and returns the restore function.
func rawMode() (func(), error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, state) }, nil
}
