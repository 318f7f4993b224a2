package main

import (
	"github.com/vulnwatch/go-recon/recon/cli"
	"github.com/vulnwatch/go-recon/recon/slogger"
)

func main() {
	slogger.Init()
	cli.Execute()
}
