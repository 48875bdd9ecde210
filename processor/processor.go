// Package processor runs registered operations on process signals:
// shutdown operations on SIGINT/SIGTERM, reload operations on SIGHUP.
package processor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	Reload   = "reload"
	Shutdown = "shutdown"
)

type Processor struct {
	// ForceShutdownTimeout bounds the shutdown sequence; past it the
	// process exits whatever state the operations are in.
	ForceShutdownTimeout time.Duration
	rChan                chan os.Signal
	shutOps              map[string]func() error
	reloadOps            map[string]func() error
	wg                   sync.WaitGroup
	log                  *zap.SugaredLogger
}

// New creates a processor with no operations registered.
func New(timeout time.Duration, log *zap.SugaredLogger) *Processor {
	return &Processor{
		ForceShutdownTimeout: timeout,
		rChan:                make(chan os.Signal, 1),
		shutOps:              map[string]func() error{},
		reloadOps:            map[string]func() error{},
		log:                  log,
	}
}

// Register adds an operation to the shutdown or reload sequence.
func (p *Processor) Register(process, operationName string, operationFunction func() error) error {
	switch process {
	case Shutdown:
		p.shutOps[operationName] = operationFunction
	case Reload:
		p.reloadOps[operationName] = operationFunction
	default:
		return fmt.Errorf("%s process unknown", process)
	}
	return nil
}

// Run installs the signal handlers and starts processing in the
// background. Wait blocks until the shutdown sequence has finished.
func (p *Processor) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(p.rChan, syscall.SIGHUP)
	ctxReload, cancel := context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.processReloadSignal(ctxReload, stop)
	go p.processStopSignal(ctx, cancel)
	return nil
}

func (p *Processor) processReloadSignal(ctx context.Context, cancel context.CancelFunc) {
	p.wg.Add(1)
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			cancel() // release processStopSignal's notify context
			return
		case <-p.rChan:
			p.callProcess(p.reloadOps, Reload)
		}
	}
}

// processStopSignal runs the shutdown sequence once the stop context
// fires, with a hard exit if it overruns ForceShutdownTimeout.
func (p *Processor) processStopSignal(ctx context.Context, cancel context.CancelFunc) {
	defer p.wg.Done()
	<-ctx.Done()
	tF := time.AfterFunc(p.ForceShutdownTimeout, func() {
		p.log.Warnf("shutdown did not finish within %s, force exit", p.ForceShutdownTimeout)
		os.Exit(0)
	})
	defer tF.Stop()
	p.Shutdown()
	cancel() // stop processReloadSignal
}

// callProcess runs the operations of one sequence concurrently and waits
// for all of them.
func (p *Processor) callProcess(oper map[string]func() error, process string) {
	var wg sync.WaitGroup
	for key, op := range oper {
		wg.Add(1)
		name := key
		call := op
		go func() {
			defer wg.Done()
			if err := call(); err != nil {
				p.log.Warnf("%s %s: failed (%v)", process, name, err)
				return
			}
			p.log.Infof("%s %s: succeeded", process, name)
		}()
	}
	wg.Wait()
	p.log.Infof("%s sequence completed", process)
}

// Shutdown runs the shutdown sequence directly, without a signal.
func (p *Processor) Shutdown() {
	p.callProcess(p.shutOps, Shutdown)
}

func (p *Processor) Wait() {
	p.wg.Wait()
}
