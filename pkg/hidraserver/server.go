// Package hidraserver exposes the reduction pipeline over HTTP: submit a
// run for reduction, watch its status, pull reduced patterns out.
package hidraserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/httputils"
	"github.com/function61/gokit/taskrunner"
	"github.com/gorilla/mux"
	"github.com/hb2btools/hidractl/pkg/hidra"
	"github.com/hb2btools/hidractl/pkg/livestatus"
	"github.com/hb2btools/hidractl/pkg/peaks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// the pipeline operations the HTTP surface runs against
type Service interface {
	SubmitReduction(ctx context.Context, runNumber int) error
	RunStatus(ctx context.Context, runNumber int) (*livestatus.Status, error)
	SubRuns(ctx context.Context, runNumber int) (hidra.SubRuns, error)
	Pattern(ctx context.Context, runNumber int, subRun hidra.SubRun, maskID string) (*hidra.Pattern, error)
	PeakCollection(ctx context.Context, runNumber int, tag string) (*peaks.Collection, error)
}

func Server(ctx context.Context, addr string, authToken string, service Service, logger *log.Logger) error {
	logl := logex.Levels(logger)

	tasks := taskrunner.New(ctx, logger)

	srv := &http.Server{
		Addr:    addr,
		Handler: createHandler(service, NewMetrics(), authToken, logger),
	}

	logl.Info.Printf("listening on %s", addr)

	tasks.Start("listener "+srv.Addr, func(_ context.Context) error {
		return httputils.RemoveGracefulServerClosedError(srv.ListenAndServe())
	})

	tasks.Start("listenershutdowner", httputils.ServerShutdownTask(srv))

	return tasks.Wait()
}

func createHandler(service Service, metrics *Metrics, authToken string, logger *log.Logger) http.Handler {
	logl := logex.Levels(logex.Prefix("hidraserver", logger))

	router := mux.NewRouter()

	authenticated := func(fn http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+authToken {
				http.Error(w, "invalid or missing bearer token", http.StatusForbidden)
				return
			}

			fn(w, r)
		}
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httputils.RespondJson(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	router.HandleFunc("/api/reduce", authenticated(func(w http.ResponseWriter, r *http.Request) {
		request := struct {
			RunNumber int `json:"run_number"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := service.SubmitReduction(r.Context(), request.RunNumber); err != nil {
			metrics.ReductionsFailed.Inc()
			logl.Error.Printf("submit run %d: %v", request.RunNumber, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		metrics.ReductionsSubmitted.Inc()
		w.WriteHeader(http.StatusAccepted)
		httputils.RespondJson(w, map[string]int{"run_number": request.RunNumber})
	})).Methods(http.MethodPost)

	router.HandleFunc("/api/runs/{runNumber}/status", authenticated(func(w http.ResponseWriter, r *http.Request) {
		runNumber, err := runNumberFrom(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		metrics.StatusQueries.Inc()

		status, err := service.RunStatus(r.Context(), runNumber)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		httputils.RespondJson(w, status)
	})).Methods(http.MethodGet)

	router.HandleFunc("/api/runs/{runNumber}/subruns", authenticated(func(w http.ResponseWriter, r *http.Request) {
		runNumber, err := runNumberFrom(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		subRuns, err := service.SubRuns(r.Context(), runNumber)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		httputils.RespondJson(w, subRuns)
	})).Methods(http.MethodGet)

	router.HandleFunc("/api/runs/{runNumber}/peaks/{tag}", authenticated(func(w http.ResponseWriter, r *http.Request) {
		runNumber, err := runNumberFrom(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		collection, err := service.PeakCollection(r.Context(), runNumber, mux.Vars(r)["tag"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		httputils.RespondJson(w, collection)
	})).Methods(http.MethodGet)

	router.HandleFunc("/api/runs/{runNumber}/pattern", authenticated(func(w http.ResponseWriter, r *http.Request) {
		runNumber, err := runNumberFrom(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		subRunRaw := r.URL.Query().Get("sub_run")
		subRun, err := strconv.Atoi(subRunRaw)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad sub_run: %s", subRunRaw), http.StatusBadRequest)
			return
		}

		pattern, err := service.Pattern(r.Context(), runNumber, hidra.SubRun(subRun), r.URL.Query().Get("mask"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		metrics.PatternsServed.Inc()
		httputils.RespondJson(w, pattern)
	})).Methods(http.MethodGet)

	return router
}

func runNumberFrom(r *http.Request) (int, error) {
	raw := mux.Vars(r)["runNumber"]

	runNumber, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("bad run number: %s", raw)
	}

	return runNumber, nil
}
