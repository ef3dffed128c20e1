package core

import "fmt"

// FaultKind names the terminal processor faults the kernel can surface.
type FaultKind uint8

const (
	FaultHard FaultKind = iota
	FaultMemManage
	FaultBus
	FaultUsage
)

func (k FaultKind) String() string {
	switch k {
	case FaultHard:
		return "HardFault"
	case FaultMemManage:
		return "MemManage"
	case FaultBus:
		return "BusFault"
	case FaultUsage:
		return "UsageFault"
	default:
		return "UnknownFault"
	}
}

// Fault is a terminal condition. There is no recovery path: a fault halts
// the scheduler and the affected task state is unrecoverable.
type Fault struct {
	Kind   FaultKind
	Addr   uint32
	Reason string
}

func (f *Fault) Error() string {
	if f.Addr != 0 {
		return fmt.Sprintf("%s: %s (addr 0x%08X)", f.Kind, f.Reason, f.Addr)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// FaultHandler consumes terminal faults. Handlers are diagnostic sinks:
// by the time one runs the scheduler has already stopped, so they report
// and return.
type FaultHandler interface {
	HandleFault(f *Fault)
}

// LogFaultHandler reports the fault kind through a Logger. It is the
// default handler.
type LogFaultHandler struct {
	Log Logger
}

func (h *LogFaultHandler) HandleFault(f *Fault) {
	log := h.Log
	if log == nil {
		log = NewDefaultLogger()
	}
	log.Error("processor fault",
		F("kind", f.Kind.String()),
		F("reason", f.Reason),
		F("addr", fmt.Sprintf("0x%08X", f.Addr)))
}
