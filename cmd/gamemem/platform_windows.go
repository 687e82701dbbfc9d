package main

import (
	"gamemem/process"
	"gamemem/process_windows"
)

func newPlatform() process.Platform {
	return process_windows.NewPlatform()
}
