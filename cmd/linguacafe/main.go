// Package main is the entry point for the linguacafe CLI.
//
// Usage:
//
//	linguacafe [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the websocket gateway for browser clients
//	talk      - Practice a conversation from the terminal
//	scenario  - Generate a roleplay scenario
//	history   - Browse and export archived conversations
//	config    - Show or initialize the configuration
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/linguacafe/linguacafe/cmd/linguacafe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
