package main

import (
	"os"

	landscapecmder "github.com/papercomputeco/landscape/cmd/landscape"
)

func main() {
	cmd := landscapecmder.NewLandscapeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
