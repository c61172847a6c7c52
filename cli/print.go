package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, format+"\n", a...)
}

// infof prints a message prefixed with a bold cyan "Info: ".
func infof(w io.Writer, format string, a ...interface{}) {
	fmt.Fprint(w, color.New(color.Bold, color.FgCyan).Sprint("Info: "))
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	fmt.Fprint(w, color.New(color.Bold, color.FgYellow).Sprint("Warning: "))
	fmt.Fprintf(w, format+"\n", a...)
}
