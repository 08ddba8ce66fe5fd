// Command acsbot runs the office access-control chat bot.
package main

import (
	"os"

	"github.com/rfdyn/acsbot/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
