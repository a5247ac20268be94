package runner

import "syscall"

// setParentDeathSignal terminates the child if tutils dies first.
func setParentDeathSignal(attr *syscall.SysProcAttr) {
	attr.Pdeathsig = syscall.SIGTERM
}
