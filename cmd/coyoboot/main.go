// Command coyoboot wires the capability engine together:
// HAL -> object cache -> handler table -> invocation engine, in that
// order, per the boot-sequence design note (spec.md §9) and
// SPEC_FULL.md's "Global mutable state" construction order. This
// simulation entry point has no real hardware to bring up (see
// SPEC_FULL.md §1.1): kernel/hal/simhal stands in for the HAL, and an
// optional boot image seeds the object cache in place of a bootloader.
//
// Grounded on the teacher's boot.go/stub.go -> kernel.Kmain trampoline
// shape, generalized from "jump into the one kernel" to "construct one
// KernelState". No invocation loop runs over it: after construction the
// command only serves the metrics registry over HTTP.
package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vsrinivas/coyotos/kernel/hal/simhal"
	"github.com/vsrinivas/coyotos/kernel/handler"
	"github.com/vsrinivas/coyotos/kernel/image"
	"github.com/vsrinivas/coyotos/kernel/invoke"
	"github.com/vsrinivas/coyotos/kernel/kconfig"
	"github.com/vsrinivas/coyotos/kernel/klog"
	"github.com/vsrinivas/coyotos/kernel/kmetrics"
	"github.com/vsrinivas/coyotos/kernel/objcache"
	"github.com/vsrinivas/coyotos/kernel/store"

	"github.com/spf13/afero"
)

const (
	appName    = "coyoboot"
	appVersion = "0.1.0"
	pageSize   = 4096
	numPages   = 1 << 16
)

// KernelState holds every shared table the invocation engine needs,
// constructed once at boot in the fixed order HAL -> obhash (cache) ->
// caches (sizing) -> arch-cache (handler table).
type KernelState struct {
	Config  kconfig.Config
	Cache   *objcache.Cache
	Engine  *invoke.Engine
}

func bootKernel(cfg kconfig.Config) (*KernelState, error) {
	h := simhal.New(numPages, pageSize)

	backing := afero.NewOsFs()
	st := store.NewFSStore(backing, cfg.StoreRoot)

	cache := objcache.New(h, st, objcache.Sizes{
		Processes: cfg.NProc,
		GPTs:      cfg.NGPT,
		CapPages:  cfg.NCapPage,
		Endpoints: cfg.NEndpoint,
		Pages:     cfg.NPage,
	})

	if cfg.ImagePath != "" {
		f, err := backing.Open(cfg.ImagePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if _, err := image.Load(f, cache); err != nil {
			return nil, err
		}
		klog.L().WithField("path", cfg.ImagePath).Info("boot image loaded")
	}

	handlers := handler.NewHandlerTable()
	engine := invoke.NewEngine(h, cache, handlers)

	return &KernelState{Config: cfg, Cache: cache, Engine: engine}, nil
}

func main() {
	cfg, err := kconfig.Parse(appName, appVersion, os.Args[1:])
	if err != nil {
		klog.L().WithError(err).Fatal("failed to parse boot configuration")
	}

	state, err := bootKernel(cfg)
	if err != nil {
		klog.L().WithError(err).Fatal("boot failed")
	}
	klog.L().WithFields(map[string]interface{}{
		"nproc":    cfg.NProc,
		"ngpt":     cfg.NGPT,
		"ncappage": cfg.NCapPage,
		"nendpt":   cfg.NEndpoint,
		"npage":    cfg.NPage,
	}).Info("coyoboot: kernel wired, idling (no real trap source in this build)")

	http.Handle("/metrics", promhttp.HandlerFor(kmetrics.Registry, promhttp.HandlerOpts{}))
	_ = state.Engine
	klog.L().Fatal(http.ListenAndServe(":9330", nil))
}
