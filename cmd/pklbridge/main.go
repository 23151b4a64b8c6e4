// Command pklbridge converts Python pickles to and from text.
//
//	pklbridge load [text|-]      decode base64 pickle text and print the object
//	pklbridge dump [json|-]      pickle JSON value and print it as base64 text
//	pklbridge table <file>       print table snapshot stored in a pickle file
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes pklbridge with command line args and returns the exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		if a.log != nil {
			a.log.Error("pklbridge failed", zap.Error(err))
		} else {
			fmt.Fprintln(stderr, "pklbridge:", err)
		}
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}

	if err != nil {
		return 1
	}
	return 0
}
