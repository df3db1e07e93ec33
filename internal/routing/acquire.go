package routing

import (
	"net/http"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
)

func lockOnScheme(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	lock, err := ls.LockOnScheme(r.Context(), r.Header.Get(SchemeHeader))
	writeLock(w, lock, err)
}

func lockForCaller(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	lock, err := ls.LockForCaller(r.Context(), r.Header.Get(SchemeHeader), r.Header.Get(PsaIDHeader))
	writeLock(w, lock, err)
}

func lockByCaller(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	lock, err := ls.LockByCaller(r.Context())
	writeLock(w, lock, err)
}

// acquire wraps the lock Acquire function and creates a clean HTTP service.
func acquire(w http.ResponseWriter, r *http.Request, ls *lockservice.Service) {
	err := ls.Acquire(r.Context(), r.Header.Get(SchemeHeader), r.Header.Get(PsaIDHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write([]byte("lock acquired"))
}

func writeLock(w http.ResponseWriter, lock *lockservice.MigrationLock, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	if lock == nil {
		writeErrorResponse(w, http.StatusNotFound, CodeNotFound, "lock not found")
		return
	}
	writeJSON(w, http.StatusOK, lock)
}
