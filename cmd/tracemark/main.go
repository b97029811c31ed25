package main

import (
	"github.com/joho/godotenv"

	"github.com/sarchlab/tracemark/cmd/tracemark/cmd"
)

func main() {
	// A .env file can provide defaults such as TRACEMARK_PORT.
	_ = godotenv.Load()

	cmd.Execute()
}
