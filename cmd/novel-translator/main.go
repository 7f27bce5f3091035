package main

import (
	"os"

	"github.com/nerdneilsfield/novel-translator/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	os.Exit(cli.Execute(Version, Commit, BuildDate))
}
