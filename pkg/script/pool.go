package script

import (
	"context"
	"sync"
	"time"
)

type VM interface {
	VM()
}

type VMFactory interface {
	NewVM() VM
}

// VMPool recycles interpreter instances between runs. VM startup is the
// expensive part of script execution, so a minimum number of instances is
// kept warm and excess instances are dropped periodically.
type VMPool struct {
	pool          chan VM
	vmFactory     VMFactory
	activeVmCount int
	activeVmMu    *sync.Mutex
	maxPoolSize   int
	minPoolSize   int
}

func NewVMPool(ctx context.Context, vmFactory VMFactory, maxPoolSize int, minPoolSize int) *VMPool {
	if maxPoolSize < minPoolSize {
		panic("vm pool max size is smaller than vm pool min size")
	}

	p := VMPool{
		pool:          make(chan VM, maxPoolSize),
		vmFactory:     vmFactory,
		activeVmCount: 0,
		activeVmMu:    &sync.Mutex{},
		maxPoolSize:   maxPoolSize,
		minPoolSize:   minPoolSize,
	}

	for i := 0; i < minPoolSize; i++ {
		p.activeVmMu.Lock()
		p.pool <- p.vmFactory.NewVM()
		p.activeVmCount++
		p.activeVmMu.Unlock()
	}

	// drop idle VMs above the minimum every 10 minutes
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for len(p.pool) > minPoolSize {
					p.activeVmMu.Lock()
					<-p.pool
					p.activeVmCount--
					p.activeVmMu.Unlock()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return &p
}

func (p *VMPool) Get() VM {
	var vm VM
	select {
	case vm = <-p.pool:
	default:
		p.activeVmMu.Lock()
		if p.activeVmCount < p.maxPoolSize {
			vm = p.vmFactory.NewVM()
			p.activeVmCount++
		}
		p.activeVmMu.Unlock()
		if vm == nil {
			vm = <-p.pool
		}
	}
	return vm
}

func (p *VMPool) Put(vm VM) {
	select {
	case p.pool <- vm:
	default:
		// drop the vm if the pool is full
		p.activeVmMu.Lock()
		p.activeVmCount--
		p.activeVmMu.Unlock()
	}
}
