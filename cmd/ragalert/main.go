package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"ragalert/internal/cli"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}
	cli.Execute()
}
