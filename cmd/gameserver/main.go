// Package main provides the game server binary: the websocket game server,
// database migrations and account provisioning.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
