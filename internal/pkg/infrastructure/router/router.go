package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fieldwatch/telemetry-hub/domain"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/query"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/tiles"
)

type Router interface {
	Start(port string) error
}

type TileDirectory interface {
	Tile(ctx context.Context, id int) (domain.Tile, error)
}

type routerStruct struct {
	router           chi.Router
	log              zerolog.Logger
	queries          *query.Service
	evaluator        *tiles.Evaluator
	tileDir          TileDirectory
	offlineThreshold time.Duration
}

func SetupRouter(chiRouter chi.Router, log zerolog.Logger, queries *query.Service, evaluator *tiles.Evaluator, tileDir TileDirectory, offlineThreshold time.Duration) *routerStruct {
	r := &routerStruct{
		router:           chiRouter,
		log:              log,
		queries:          queries,
		evaluator:        evaluator,
		tileDir:          tileDir,
		offlineThreshold: offlineThreshold,
	}

	chiRouter.Use(middleware.Logger)
	chiRouter.Get("/health", r.health)
	chiRouter.Method(http.MethodGet, "/metrics", promhttp.Handler())
	chiRouter.Get("/api/v1/snapshot", r.snapshot)
	chiRouter.Get("/api/v1/range", r.rangeQuery)
	chiRouter.Get("/api/v1/tiles/{id}", r.tile)

	return r
}

func (r *routerStruct) Start(port string) error {
	r.log.Info().Str("port", port).Msg("starting to listen for connections")
	return http.ListenAndServe(fmt.Sprintf(":%s", port), otelhttp.NewHandler(r.router, "telemetry-hub"))
}

func (router *routerStruct) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (router *routerStruct) snapshot(w http.ResponseWriter, r *http.Request) {
	sensorIDs, err := sensorIDsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := router.queries.GetSnapshot(r.Context(), sensorIDs)
	if err != nil {
		router.log.Error().Err(err).Msg("snapshot query failed")
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"sensors": snapshot})
}

func (router *routerStruct) rangeQuery(w http.ResponseWriter, r *http.Request) {
	sensorIDs, err := sensorIDsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: from is not a valid RFC3339 instant", domain.ErrInvalidRange))
		return
	}

	var to time.Time
	if s := r.URL.Query().Get("to"); s != "" {
		if to, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, fmt.Errorf("%w: to is not a valid RFC3339 instant", domain.ErrInvalidRange))
			return
		}
	}

	series, err := router.queries.GetRange(r.Context(), sensorIDs, from, to)
	if err != nil {
		router.log.Error().Err(err).Msg("range query failed")
		writeError(w, err)
		return
	}

	// break plotted lines at outages before handing the series to charts
	for _, byParam := range series {
		for p, s := range byParam {
			byParam[p] = query.ReconstructGaps(s, router.offlineThreshold)
		}
	}

	writeJSON(w, map[string]any{"sensors": series})
}

func (router *routerStruct) tile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: tile id must be numeric", domain.ErrParse))
		return
	}

	tile, err := router.tileDir.Tile(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := router.evaluator.EvaluateLive(r.Context(), tile)
	if err != nil {
		router.log.Error().Err(err).Int("tile_id", id).Msg("tile evaluation failed")
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"tile": tile, "result": result})
}

func sensorIDsFromQuery(r *http.Request) ([]int, error) {
	values := r.URL.Query()["sensor"]
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: at least one sensor must be given", domain.ErrParse)
	}

	ids := make([]int, 0, len(values))
	for _, v := range values {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: sensor id %q is not numeric", domain.ErrParse, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrParse), errors.Is(err, domain.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownSensor), errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
