package main

import (
	"fmt"
	"io"

	"github.com/asheshgoplani/archive-deck/internal/config"
)

func handleConfig(args []string, out io.Writer) error {
	if len(args) != 1 {
		return usagef("config init|path")
	}
	path, err := config.UserConfigPath()
	if err != nil {
		return err
	}
	switch args[0] {
	case "path":
		fmt.Fprintln(out, path)
		return nil
	case "init":
		created, err := config.CreateExampleConfig()
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(out, "%s already exists\n", path)
			return nil
		}
		return NewCLIOutput(out, false).Success("Wrote "+path, nil)
	}
	return usagef("config init|path")
}
