package main

import "github.com/devicelab-dev/wdclient/pkg/cli"

func main() {
	cli.Execute()
}
