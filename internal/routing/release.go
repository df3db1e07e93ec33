package routing

import (
	"net/http"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
)

// Releasing a lock that doesn't exist succeeds.

func releaseOnScheme(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	writeReleased(w, ls.ReleaseOnScheme(r.Context(), r.Header.Get(SchemeHeader)))
}

func releaseByCaller(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	writeReleased(w, ls.ReleaseByCaller(r.Context()))
}

func releaseExact(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	writeReleased(w, ls.ReleaseExactForCaller(r.Context(), r.Header.Get(SchemeHeader), r.Header.Get(PsaIDHeader)))
}

func writeReleased(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write([]byte("lock released"))
}
