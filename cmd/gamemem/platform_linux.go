package main

import (
	"gamemem/process"
	"gamemem/process_linux"
)

func newPlatform() process.Platform {
	return process_linux.NewPlatform()
}
