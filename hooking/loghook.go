package hooking

import (
	"log"
)

// A LogHook is a hook that is responsible for reporting information that
// flows through a hookable object.
type LogHook interface {
	Hook
}

// LogHookBase provides the common logic for all LogHooks.
type LogHookBase struct {
	*log.Logger
}
