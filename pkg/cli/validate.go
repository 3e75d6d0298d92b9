package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check test scripts without running them",
	ArgsUsage: "<script-file or folder>...",
	Action:    validateScripts,
}

func validateScripts(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one script file or folder is required")
	}

	o := runOptionsFrom(c)
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	result, err := loadScripts(cfg, o, c.Args().Slice())
	if err != nil {
		return err
	}

	out := newConsole(os.Stdout, false)
	out.configWarnings(cfg.Warnings())
	out.validated(result)
	if !result.IsValid() {
		return cli.Exit(fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)), 1)
	}
	return nil
}
