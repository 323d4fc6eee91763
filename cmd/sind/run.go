package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/kristofer/sind/internal/adminapi"
	"github.com/kristofer/sind/internal/config"
	"github.com/kristofer/sind/internal/logging"
	"github.com/kristofer/sind/pkg/compiler"
	"github.com/kristofer/sind/pkg/item"
	"github.com/kristofer/sind/pkg/libcall"
	"github.com/kristofer/sind/pkg/vm"
)

// tickInterval is the event loop's wall-clock period. One tick
// advances the scheduler's decisecond clock by one unit (§4.6:
// "firing first after s × 100ms"), matching the 100ms granularity
// task.newgametask's arguments are specified in.
const tickInterval = 100 * time.Millisecond

// maxConns mirrors original_source/src/config.h's compile-time
// connection-table size (SPEC_FULL.md's "Supplemented Features"
// section: config.h's tunables become named constants, not flags).
const maxConns = 64

// runServer executes §6.5's boot sequence and, unless --bootonly,
// drives the event loop of §5 until sys.shutdown/sys.abort or a
// process signal.
func runServer(cfg config.Config) error {
	log := buildLogger(cfg)

	store, err := loadOrCreateStore(cfg)
	if err != nil {
		return fmt.Errorf("sind: loading itemstore: %w", err)
	}

	srcWriter, err := newSrcTreeWriter(cfg.Srcroot, cfg.Srcroot == config.Defaults.Srcroot)
	if err != nil {
		return fmt.Errorf("sind: preparing srcroot: %w", err)
	}

	host := NewHost(store, cfg.Itemstore, cfg.Input, maxConns, log)
	table := libcall.Build(host)

	machine := vm.New(store, table.Handlers())
	machine.Compiler = compiler.New(table)
	machine.Source = srcWriter
	machine.Log = log

	if err := runBoot(machine, store, cfg.Object, log); err != nil {
		return err
	}

	if cfg.BootOnly {
		log.Info("sind: --bootonly set, exiting before the event loop")
		return persistFinal(cfg, store, log)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("sind: listening on port %d: %w", cfg.Port, err)
	}
	defer ln.Close()
	go host.acceptLoop(ln)

	adminCtx, stopAdmin := context.WithCancel(context.Background())
	defer stopAdmin()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port+1)
		if err := adminapi.Serve(adminCtx, addr, adminapi.Handler{
			Sources: adminapi.Sources{Store: store, Scheduler: host.sched, Lines: host.lines},
			Log:     log,
		}); err != nil {
			log.Debug("sind: admin endpoint stopped", "err", err)
		}
	}()

	log.Info("sind: serving", "port", cfg.Port, "admin_port", cfg.Port+1)
	eventLoop(machine, host, store, cfg, log)
	stopAdmin()

	// §6.1: "on sys.abort the itemstore is NOT saved" — a safe
	// shutdown (sys.shutdown) persists; an abort-triggered one does
	// not.
	if !host.safeShutdown && host.shutdownRequested {
		log.Info("sind: unsafe shutdown, itemstore not persisted")
		return nil
	}
	return persistFinal(cfg, store, log)
}

func runBoot(machine *vm.Interp, store *item.Itemstore, objectPath string, log *logging.Logger) error {
	code, err := os.ReadFile(objectPath)
	if err != nil {
		return fmt.Errorf("sind: reading boot object %q: %w", objectPath, err)
	}
	bootName := "sind_boot_transient"
	bootItem, err := store.InsertCodeItem(bootName, code)
	if err != nil {
		return fmt.Errorf("sind: installing boot item: %w", err)
	}

	// §6.5: "the boot item runs once... with no parameters. It is
	// expected to populate the itemstore and register tasks via
	// libcalls. The boot item is then destroyed."
	_, runErr := machine.Run(bootItem, nil)
	if runErr != nil {
		log.Warn("sind: boot item aborted", "err", runErr)
	}
	return store.Delete(bootName)
}

// eventLoop is §5's single-threaded cooperative scheduler: each tick,
// apply queued socket I/O, fire due scheduler tasks, sweep the input
// pump fairly across every connection slot, flush output, then check
// for a requested shutdown.
func eventLoop(machine *vm.Interp, host *Host, store *item.Itemstore, cfg config.Config, log *logging.Logger) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		host.drainEvents()

		for _, t := range host.sched.Advance(1) {
			callee, err := store.Find(t.ItemName)
			if err != nil {
				log.Warn("sind: task fired for missing item", "item", t.ItemName, "id", t.ID)
				continue
			}
			result, runErr := machine.Run(callee, nil)
			if runErr != nil {
				dumpAbort(machine, log, runErr)
			} else {
				log.Debug("sind: task returned", "item", t.ItemName, "result", result.String())
			}
		}

		if inputItem, err := store.Find(cfg.Input); err == nil {
			// One invocation per connection slot per tick, so the fair
			// round-robin cursor inside net.input() gets a chance to
			// visit every slot even when several have pending work
			// (§4.7: "no line can be starved").
			for i := 0; i < host.lines.Len(); i++ {
				if _, runErr := machine.Run(inputItem, nil); runErr != nil {
					dumpAbort(machine, log, runErr)
				}
			}
		}

		host.flushOutput()
		host.reapClosed()

		if host.shutdownRequested {
			log.Info("sind: shutdown requested", "safe", host.safeShutdown)
			return
		}
	}
}

func dumpAbort(machine *vm.Interp, log *logging.Logger, err error) {
	log.Warn("sind: interpreter aborted", "err", err)
	log.Debug("sind: abort state dump", "depth", machine.Depth(), "state", spew.Sdump(err))
}

func loadOrCreateStore(cfg config.Config) (*item.Itemstore, error) {
	if cfg.Itemstore == "" {
		return item.New(), nil
	}
	f, err := os.Open(cfg.Itemstore)
	if os.IsNotExist(err) {
		return item.New(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return item.Load(f)
}

func persistFinal(cfg config.Config, store *item.Itemstore, log *logging.Logger) error {
	if cfg.Itemstore == "" {
		return nil
	}
	f, err := os.Create(cfg.Itemstore)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := item.Save(f, store); err != nil {
		return err
	}
	log.Info("sind: itemstore persisted", "path", cfg.Itemstore)
	return nil
}

// buildLogger implements §6.1's --log: redirect the process's own
// stdout/stderr to <stem>.log/<stem>.err, appending, exactly as
// original_source/src/log.c's log_to_file freopen()s them. The
// structured logger itself is pointed at the (now redirected) stdout,
// mirroring log_to_file/logmsg's routing of ordinary output to the
// .log half of the pair.
func buildLogger(cfg config.Config) *logging.Logger {
	if cfg.Log == "" {
		return logging.NewDefault()
	}

	outFile, err := os.OpenFile(cfg.Log+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sind: unable to open logfile %s.log: %v\n", cfg.Log, err)
		return logging.NewDefault()
	}
	errFile, err := os.OpenFile(cfg.Log+".err", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sind: unable to open error logfile %s.err: %v\n", cfg.Log, err)
		outFile.Close()
		return logging.NewDefault()
	}

	os.Stdout = outFile
	os.Stderr = errFile
	return logging.New(os.Stdout, logging.LevelInfo)
}
