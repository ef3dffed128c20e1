package minirtos

import (
	"context"
	"fmt"
	"time"

	"github.com/minirtos/go-mini-rtos/armv7m"
	"github.com/minirtos/go-mini-rtos/board"
	"github.com/minirtos/go-mini-rtos/config"
	"github.com/minirtos/go-mini-rtos/core"
)

// Options configures an assembled system. Nil collaborators get defaults.
type Options struct {
	Config       config.Config
	Logger       core.Logger
	Metrics      core.Metrics
	FaultHandler core.FaultHandler
}

// System bundles the scheduler with the board peripherals it drives.
type System struct {
	Kernel *core.Kernel
	LEDs   *board.LEDBank
	Port   *armv7m.Port

	interval time.Duration
}

// New assembles a kernel from a configuration, following the firmware
// boot order: enable faults, set the scheduler stack, fabricate the task
// stacks, init the LEDs, arm the tick timer, switch onto the process
// stack. The returned system has not started; call Start or Run.
func New(opts Options) (*System, error) {
	cfg := opts.Config
	if cfg.TickHz == 0 && cfg.Tasks == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reload, err := armv7m.ReloadValue(cfg.ClockHz, cfg.TickHz)
	if err != nil {
		return nil, err
	}

	ram, err := armv7m.NewRAM(armv7m.SRAMStart, armv7m.SRAMSize)
	if err != nil {
		return nil, err
	}
	port := armv7m.NewPort(ram)
	port.EnableFaults()

	slots := len(cfg.Tasks) + 1
	sm, err := core.NewStackMap(armv7m.SRAMStart, armv7m.SRAMEnd, cfg.StackSize, slots)
	if err != nil {
		return nil, err
	}
	if err := port.InitSchedulerStack(sm.SchedulerStackTop()); err != nil {
		return nil, err
	}

	leds := board.NewLEDBank()
	tcbs := make([]*core.TCB, slots)
	tcbs[core.IdleTask] = &core.TCB{Name: "idle", Entry: Idle()}
	for i, t := range cfg.Tasks {
		tcbs[i+1] = &core.TCB{Name: t.Name, Entry: Blinker(leds, t.LED, t.Period)}
	}

	store, err := core.NewStore(tcbs)
	if err != nil {
		return nil, err
	}
	kernel, err := core.NewKernel(store, sm, port, core.KernelConfig{
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		FaultHandler: opts.FaultHandler,
	})
	if err != nil {
		return nil, err
	}

	leds.InitAll()
	leds.SetClock(kernel.Now)

	if err := port.ArmSysTick(reload); err != nil {
		return nil, err
	}
	port.UsePSP(store.Task(core.TaskID(1)).SavedSP, port.EntryAddress(1))

	return &System{
		Kernel:   kernel,
		LEDs:     leds,
		Port:     port,
		interval: port.TickInterval(cfg.ClockHz),
	}, nil
}

// NewFromConfigFile assembles a system from a YAML config file.
func NewFromConfigFile(path string, opts Options) (*System, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	opts.Config = cfg
	return New(opts)
}

// Start enters the first user task and returns once the boot chain has
// settled. Time does not advance until Run or Kernel.Tick.
func (s *System) Start() error {
	return s.Kernel.Start()
}

// Run boots the system and drives it from a wall-clock timer at the
// configured tick rate until the context is canceled or a fault halts
// the scheduler.
func (s *System) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("tick timer is not armed")
	}
	return s.Kernel.Run(ctx, s.interval)
}

// Stop shuts the kernel down.
func (s *System) Stop() {
	s.Kernel.Stop()
}
