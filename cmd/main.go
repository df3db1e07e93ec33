package main

import "github.com/SystemBuilders/MigrationLock/internal/command"

func main() {
	command.MustStart()
}
