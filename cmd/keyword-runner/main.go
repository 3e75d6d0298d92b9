// Command keyword-runner runs keyword-driven browser test scripts.
package main

import "github.com/devicelab-dev/keyword-runner/pkg/cli"

func main() {
	cli.Execute()
}
