package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/platform"
)

const defaultProbeTimeout = 10 * time.Second

type (
	ProbeHandler interface {
		ConfigureHandler(register func(pattern string, handlerFunc http.HandlerFunc))
		HandleLiveness(resp http.ResponseWriter, request *http.Request)
		HandleReadiness(resp http.ResponseWriter, request *http.Request)
	}

	// Prober is the part of *platform.Platform the probes look at
	Prober interface {
		Synced() bool
		Do(ctx context.Context, fn func(*platform.Platform) error) error
	}
)

type probeHandler struct {
	prober       Prober
	probeTimeout time.Duration
}

func NewProbeHandler(prober Prober) ProbeHandler {
	return &probeHandler{
		prober:       prober,
		probeTimeout: defaultProbeTimeout,
	}
}

func (p *probeHandler) ConfigureHandler(register func(pattern string, handlerFunc http.HandlerFunc)) {
	register("/readyz", p.HandleReadiness)
	register("/healthz", p.HandleLiveness)
}

// HandleLiveness answers once the event loop has picked up an empty task
func (p *probeHandler) HandleLiveness(resp http.ResponseWriter, request *http.Request) {
	p.probe(resp, request)
}

// HandleReadiness additionally requires the initial enumeration to be done
func (p *probeHandler) HandleReadiness(resp http.ResponseWriter, request *http.Request) {
	if !p.prober.Synced() {
		http.Error(resp, "Platform cache not populated yet", http.StatusServiceUnavailable)
		return
	}
	p.probe(resp, request)
}

func (p *probeHandler) probe(resp http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), p.probeTimeout)
	log := logger.FromContext(ctx)
	defer cancel()

	log.Tracef("Starting probe")
	err := p.prober.Do(ctx, func(*platform.Platform) error { return nil })

	if err == nil {
		resp.WriteHeader(http.StatusOK)
	} else if errors.Is(err, context.DeadlineExceeded) {
		log.Warnf("Failed probe: %v", err)
		resp.WriteHeader(http.StatusRequestTimeout)
	} else {
		resp.WriteHeader(http.StatusInternalServerError)
		log.Errorf("InternalServerError: %v", err)
		_, _ = resp.Write([]byte("Internal Server Error occurred"))
	}
}
