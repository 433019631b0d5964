package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netcfgd/netcfgd/internal/middleware/logger"
	"github.com/netcfgd/netcfgd/pkg/errors"
	"github.com/netcfgd/netcfgd/pkg/snapshot"
)

// SnapshotHandler serves read-only JSON views of the platform cache
type SnapshotHandler struct {
	Source snapshot.Source
}

var (
	promHttpStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netcfgd",
		Subsystem: "status",
		Name:      "http_responses_total",
		Help:      "Status server http response code",
	}, []string{"code"})
)

func NewSnapshotHandler(source snapshot.Source) *SnapshotHandler {
	return &SnapshotHandler{Source: source}
}

func (h *SnapshotHandler) ConfigureHandler(register func(pattern string, handlerFunc http.HandlerFunc)) {
	register("/v1/links", h.HandleLinks)
	register("/v1/addresses", h.HandleAddresses)
	register("/v1/routes", h.HandleRoutes)
}

func (h *SnapshotHandler) HandleLinks(resp http.ResponseWriter, req *http.Request) {
	serveSnapshot(resp, req, h.Source.Links)
}

func (h *SnapshotHandler) HandleAddresses(resp http.ResponseWriter, req *http.Request) {
	serveSnapshot(resp, req, h.Source.Addresses)
}

func (h *SnapshotHandler) HandleRoutes(resp http.ResponseWriter, req *http.Request) {
	serveSnapshot(resp, req, h.Source.Routes)
}

func serveSnapshot[T any](resp http.ResponseWriter, req *http.Request, query func(context.Context, int) ([]T, error)) {
	ctx := req.Context()
	log := logger.FromContext(ctx)

	ifindex, err := parseIfindex(req)
	if err != nil {
		promHttpStatus.WithLabelValues(strconv.Itoa(http.StatusBadRequest)).Inc()
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	objects, err := query(ctx, ifindex)
	if err != nil {
		code := errors.HttpStatus(err)
		if code == http.StatusInternalServerError {
			errors.LogError(ctx, err)
		}
		promHttpStatus.WithLabelValues(strconv.Itoa(code)).Inc()
		http.Error(resp, err.Error(), code)
		return
	}
	if objects == nil {
		objects = []T{}
	}

	jsonOutput, err := json.Marshal(objects)
	if err != nil {
		promHttpStatus.WithLabelValues(strconv.Itoa(http.StatusInternalServerError)).Inc()
		http.Error(resp, "Unable to serialize snapshot", http.StatusInternalServerError)
		return
	}

	resp.Header().Add("Content-Type", "application/json")
	promHttpStatus.WithLabelValues("200").Inc()
	_, err = resp.Write(jsonOutput)
	if err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

// parseIfindex reads the optional ifindex query parameter. 0 means all links.
func parseIfindex(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("ifindex")
	if raw == "" {
		return 0, nil
	}
	ifindex, err := strconv.Atoi(raw)
	if err != nil || ifindex <= 0 {
		return 0, fmt.Errorf("invalid ifindex %q", raw)
	}
	return ifindex, nil
}
