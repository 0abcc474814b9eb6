// Command jobhost runs recurring job domains from a YAML definition file.
//
//	jobhost run                 serve every domain and the HTTP API
//	jobhost once --domain NAME  run one tick and exit with its status
//	jobhost validate            check the domains file and print job order
//
// Process settings come from JOBHOST_* environment variables.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		var ec exitCode
		if errors.As(err, &ec) {
			os.Exit(int(ec))
		}
		fmt.Fprintln(os.Stderr, "jobhost:", err)
		os.Exit(1)
	}
}
