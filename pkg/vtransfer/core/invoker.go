package core

import "sync"

// Used to spawn and control all go routines created by the
// protocol. Everything goes through the invoker so a host can
// wait for complete shutdown.
type Invoker interface {
	// Spawn the function on its own go routine.
	Spawn(f func())

	// Block until every spawned routine finished.
	Stop()
}

var (
	invoker     Invoker
	invokerOnce sync.Once
)

// The process wide invoker instance.
func InvokerInstance() Invoker {
	invokerOnce.Do(func() {
		invoker = &groupInvoker{group: &sync.WaitGroup{}}
	})
	return invoker
}

type groupInvoker struct {
	group *sync.WaitGroup
}

func (g *groupInvoker) Spawn(f func()) {
	g.group.Add(1)
	go func() {
		defer g.group.Done()
		f()
	}()
}

func (g *groupInvoker) Stop() {
	g.group.Wait()
}
