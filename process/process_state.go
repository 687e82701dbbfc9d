package process

// ProcessState represents the state of a process
type ProcessState string

const (
	ProcessRunning    ProcessState = "R" // Running
	ProcessSleeping   ProcessState = "S" // Sleeping in an interruptible wait
	ProcessWaiting    ProcessState = "D" // Waiting in uninterruptible disk sleep
	ProcessZombie     ProcessState = "Z" // Zombie
	ProcessStopped    ProcessState = "T" // Stopped (on a signal)
	ProcessTracingStp ProcessState = "t" // Tracing stop
	ProcessDead       ProcessState = "X" // Dead
	ProcessIdle       ProcessState = "I" // Idle kernel thread
)

// IsAlive reports whether a process in this state can still be read from
func (s ProcessState) IsAlive() bool {
	switch s {
	case ProcessZombie, ProcessDead, "x":
		return false
	}
	return true
}
