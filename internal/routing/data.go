package routing

import (
	"io/ioutil"
	"net/http"

	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
)

const maxDataSize = 1 << 20

func getData(w http.ResponseWriter, r *http.Request, ds *migrationdata.Service) {
	data, err := ds.Get(r.Context(), r.Header.Get(SchemeHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	if data == nil {
		writeErrorResponse(w, http.StatusNotFound, CodeNotFound, "migration data not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func saveData(w http.ResponseWriter, r *http.Request, ds *migrationdata.Service) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxDataSize))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	if err := ds.Save(r.Context(), r.Header.Get(SchemeHeader), body); err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write([]byte("migration data saved"))
}

func removeData(w http.ResponseWriter, r *http.Request, ds *migrationdata.Service) {
	if err := ds.Remove(r.Context(), r.Header.Get(SchemeHeader)); err != nil {
		writeError(w, err)
		return
	}
	_, _ = w.Write([]byte("migration data removed"))
}
