// Package main provides the topicscope executable: a console client that
// watches MQTT topics or a websocket stream, with an optional HTTP control API.
//
// Usage:
//
//	topicscope [--config file] [--listen addr] [--headless]
//
// Configuration:
//
//	Settings are read from ~/.topicscope/config.yaml and TOPICSCOPE_*
//	environment variables. Topics and the connection form are stored in
//	the configured database (SQLite in ~/.topicscope by default).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
