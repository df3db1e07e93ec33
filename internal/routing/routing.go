// Package routing exposes the lock and migration data services over HTTP.
package routing

import (
	"net/http"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Request headers.
const (
	SchemeHeader    = "pstr"
	PsaIDHeader     = "psaId"
	RequestIDHeader = "X-Request-Id"
)

// SetupRouting adds all the routes on the http server.
func SetupRouting(ls *lockservice.Service, ds *migrationdata.Service, log zerolog.Logger, r *mux.Router) *mux.Router {
	r.Use(requestIDMiddleware, credentialsMiddleware, accessLogMiddleware(log))

	r.HandleFunc("/lock-on-scheme", makeLockOnSchemeHandler(ls)).Methods(http.MethodGet)
	r.HandleFunc("/lock-on-scheme", makeReleaseOnSchemeHandler(ls)).Methods(http.MethodDelete)
	r.HandleFunc("/lock", makeLockForCallerHandler(ls)).Methods(http.MethodGet)
	r.HandleFunc("/lock", makeAcquireHandler(ls)).Methods(http.MethodPost)
	r.HandleFunc("/lock", makeReleaseExactHandler(ls)).Methods(http.MethodDelete)
	r.HandleFunc("/lock-by-user", makeLockByCallerHandler(ls)).Methods(http.MethodGet)
	r.HandleFunc("/lock-by-user", makeReleaseByCallerHandler(ls)).Methods(http.MethodDelete)

	r.HandleFunc("/migration-data", makeGetDataHandler(ds)).Methods(http.MethodGet)
	r.HandleFunc("/migration-data", makeSaveDataHandler(ds)).Methods(http.MethodPost)
	r.HandleFunc("/migration-data", makeRemoveDataHandler(ds)).Methods(http.MethodDelete)

	r.HandleFunc("/ping", ping).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func makeLockOnSchemeHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lockOnScheme(w, r, ls)
	}
}

func makeLockForCallerHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lockForCaller(w, r, ls)
	}
}

func makeLockByCallerHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lockByCaller(w, r, ls)
	}
}

func makeAcquireHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acquire(w, r, ls)
	}
}

func makeReleaseOnSchemeHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseOnScheme(w, r, ls)
	}
}

func makeReleaseByCallerHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseByCaller(w, r, ls)
	}
}

func makeReleaseExactHandler(ls *lockservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseExact(w, r, ls)
	}
}

func makeGetDataHandler(ds *migrationdata.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		getData(w, r, ds)
	}
}

func makeSaveDataHandler(ds *migrationdata.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saveData(w, r, ds)
	}
}

func makeRemoveDataHandler(ds *migrationdata.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removeData(w, r, ds)
	}
}

func ping(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("pong"))
}
