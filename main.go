package main

import (
	"os"

	"github.com/AnyUserName/pngrepair/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
