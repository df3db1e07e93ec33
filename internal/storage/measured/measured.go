// Package measuredrepository decorates a repository with Prometheus
// operation metrics.
package measuredrepository

import (
	"context"
	"strconv"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockservice"
	"github.com/SystemBuilders/MigrationLock/internal/migrationdata"
	"github.com/SystemBuilders/MigrationLock/internal/storage/repository"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	upsertOp = "upsert"
	fetchOp  = "fetch"
	deleteOp = "delete"

	lockStore = "lock"
	dataStore = "data"
)

var (
	repOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "migrationlock",
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "The total number of repository operations.",
		},
		[]string{"store", "type", "success"},
	)
	repOperationDurationBucket = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "migrationlock",
			Subsystem: "repository",
			Name:      "operation_duration_bucket",
			Help:      "The duration in seconds of repository operations.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"store", "type", "success"},
	)
)

func init() {
	prometheus.MustRegister(repOperations, repOperationDurationBucket)
}

var _ repository.Repository = (*Measured)(nil)

// Measured is measured Repository implementation.
type Measured struct {
	measuredLockRep
	measuredDataRep
	rep repository.Repository
}

// New returns a new initialized Measured repository.
func New(rep repository.Repository) *Measured {
	return &Measured{
		measuredLockRep: measuredLockRep{rep: rep},
		measuredDataRep: measuredDataRep{rep: rep},
		rep:             rep,
	}
}

// Start initializes repository.
func (m *Measured) Start(ctx context.Context) error {
	return m.rep.Start(ctx)
}

// Stop releases all underlying repository resources.
func (m *Measured) Stop(ctx context.Context) error {
	return m.rep.Stop(ctx)
}

func reportOpMetric(store, opType string, durationInSecs float64, success bool) {
	metricLabel := prometheus.Labels{
		"store":   store,
		"type":    opType,
		"success": strconv.FormatBool(success),
	}
	repOperations.With(metricLabel).Inc()
	repOperationDurationBucket.With(metricLabel).Observe(durationInSecs)
}

type measuredLockRep struct {
	rep lockservice.LockStore
}

func (m *measuredLockRep) LockByScheme(ctx context.Context, pstr string) (lock *lockservice.MigrationLock, err error) {
	t0 := time.Now()
	lock, err = m.rep.LockByScheme(ctx, pstr)
	reportOpMetric(lockStore, fetchOp, time.Since(t0).Seconds(), err == nil)
	return
}

func (m *measuredLockRep) LockByIdentity(ctx context.Context, credID string) (lock *lockservice.MigrationLock, err error) {
	t0 := time.Now()
	lock, err = m.rep.LockByIdentity(ctx, credID)
	reportOpMetric(lockStore, fetchOp, time.Since(t0).Seconds(), err == nil)
	return
}

func (m *measuredLockRep) ExactLock(ctx context.Context, want *lockservice.MigrationLock) (lock *lockservice.MigrationLock, err error) {
	t0 := time.Now()
	lock, err = m.rep.ExactLock(ctx, want)
	reportOpMetric(lockStore, fetchOp, time.Since(t0).Seconds(), err == nil)
	return
}

func (m *measuredLockRep) SetLock(ctx context.Context, lock *lockservice.MigrationLock) error {
	t0 := time.Now()
	err := m.rep.SetLock(ctx, lock)
	reportOpMetric(lockStore, upsertOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredLockRep) ReleaseByScheme(ctx context.Context, pstr string) error {
	t0 := time.Now()
	err := m.rep.ReleaseByScheme(ctx, pstr)
	reportOpMetric(lockStore, deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredLockRep) ReleaseByIdentity(ctx context.Context, credID string) error {
	t0 := time.Now()
	err := m.rep.ReleaseByIdentity(ctx, credID)
	reportOpMetric(lockStore, deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredLockRep) ReleaseExact(ctx context.Context, lock *lockservice.MigrationLock) error {
	t0 := time.Now()
	err := m.rep.ReleaseExact(ctx, lock)
	reportOpMetric(lockStore, deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}

type measuredDataRep struct {
	rep migrationdata.Store
}

func (m *measuredDataRep) FetchData(ctx context.Context, pstr, credID string) (data []byte, err error) {
	t0 := time.Now()
	data, err = m.rep.FetchData(ctx, pstr, credID)
	reportOpMetric(dataStore, fetchOp, time.Since(t0).Seconds(), err == nil)
	return
}

func (m *measuredDataRep) UpsertData(ctx context.Context, rec *migrationdata.Record) error {
	t0 := time.Now()
	err := m.rep.UpsertData(ctx, rec)
	reportOpMetric(dataStore, upsertOp, time.Since(t0).Seconds(), err == nil)
	return err
}

func (m *measuredDataRep) DeleteData(ctx context.Context, pstr, credID string) error {
	t0 := time.Now()
	err := m.rep.DeleteData(ctx, pstr, credID)
	reportOpMetric(dataStore, deleteOp, time.Since(t0).Seconds(), err == nil)
	return err
}
