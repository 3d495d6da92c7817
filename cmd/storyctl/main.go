// cmd/storyctl/main.go
package main

import (
	"os"

	"github.com/90n9/talepick/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
