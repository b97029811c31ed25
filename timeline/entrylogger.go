package timeline

import (
	"log"

	"github.com/sarchlab/tracemark/hooking"
)

// EntryLogger is a hook that prints every entry appended to a timeline.
type EntryLogger struct {
	hooking.LogHookBase
}

// NewEntryLogger returns a new EntryLogger which will write into the logger.
func NewEntryLogger(logger *log.Logger) *EntryLogger {
	h := new(EntryLogger)
	h.Logger = logger
	return h
}

// Func writes the entry information into the logger.
func (h *EntryLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosEntryAdded {
		return
	}

	entry, ok := ctx.Item.(Entry)
	if !ok {
		return
	}

	switch entry.Kind {
	case KindMeasure:
		h.Logger.Printf("measure,%s,%s,%s,%v",
			entry.Name, entry.StartMark, entry.EndMark, entry.Duration)
	default:
		h.Logger.Printf("mark,%s,%s", entry.Name, entry.Time.Format("15:04:05.000000"))
	}
}
