package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallerLocation(t *testing.T) {
	stack := "goroutine 1 [running]:\n" +
		"runtime/debug.Stack()\n" +
		"\t/usr/local/go/src/runtime/debug/stack.go:24 +0x5e\n" +
		"github.com/splitplan/splitplan/common/log/hooks.contextHook.Fire()\n" +
		"\t/src/github.com/splitplan/splitplan/common/log/hooks/context_hook.go:25 +0x25\n" +
		"github.com/splitplan/splitplan/scheduler/admm.(*Coordinator).Run()\n" +
		"\t/src/github.com/splitplan/splitplan/scheduler/admm/coordinator.go:120 +0x1b\n"
	assert.Equal(t, "scheduler/admm/coordinator.go:120 +0x1b", callerLocation(stack))
}

func TestCallerLocationWithoutHookFrame(t *testing.T) {
	assert.Equal(t, "", callerLocation("goroutine 1 [running]:\nmain.main()\n"))
}
