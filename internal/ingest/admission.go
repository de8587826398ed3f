package ingest

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openobserve/corelake/internal/errs"
)

// tenantAdmission tracks one tenant's in-flight byte budget and per-second
// record rate, plus the consecutive-throttle counter driving the
// exponential Retry-After hint (1s -> 30s, per spec.md §4.4).
type tenantAdmission struct {
	mu sync.Mutex

	maxInFlightBytes int64
	inFlightBytes    int64

	limiter *rate.Limiter

	consecutiveThrottles int
}

// Admission enforces the per-tenant ingest ceilings configured for the
// coordinator: max_in_flight_bytes and max_records_per_second.
type Admission struct {
	mu      sync.Mutex
	tenants map[string]*tenantAdmission

	maxInFlightBytes    int64
	maxRecordsPerSecond int64
}

// NewAdmission builds an admission controller with the given per-tenant
// ceilings. A ceiling of 0 means unlimited, matching config.Admission's
// documented default.
func NewAdmission(maxInFlightBytes, maxRecordsPerSecond int64) *Admission {
	return &Admission{
		tenants:             map[string]*tenantAdmission{},
		maxInFlightBytes:    maxInFlightBytes,
		maxRecordsPerSecond: maxRecordsPerSecond,
	}
}

func (a *Admission) tenant(name string) *tenantAdmission {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tenants[name]
	if !ok {
		var limiter *rate.Limiter
		if a.maxRecordsPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(a.maxRecordsPerSecond), int(a.maxRecordsPerSecond))
		}
		t = &tenantAdmission{maxInFlightBytes: a.maxInFlightBytes, limiter: limiter}
		a.tenants[name] = t
	}
	return t
}

// Admit checks a batch of numRecords totalling numBytes against the
// tenant's ceilings. On success it reserves numBytes against the in-flight
// budget; callers must call Release(tenant, numBytes) once the batch has
// been journaled (successfully or not) to return the budget.
func (a *Admission) Admit(tenant string, numRecords int, numBytes int64) error {
	t := a.tenant(tenant)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.maxInFlightBytes > 0 && t.inFlightBytes+numBytes > t.maxInFlightBytes {
		return a.throttled(t)
	}
	if t.limiter != nil && !t.limiter.AllowN(time.Now(), numRecords) {
		return a.throttled(t)
	}

	t.inFlightBytes += numBytes
	t.consecutiveThrottles = 0
	return nil
}

func (a *Admission) throttled(t *tenantAdmission) error {
	t.consecutiveThrottles++
	retryAfter := backoffRetryAfter(t.consecutiveThrottles)
	return errs.New(errs.Throttled, "ingest: admission ceiling exceeded").WithRetryAfter(retryAfter)
}

// Release returns a reserved in-flight byte budget once a batch completes.
func (a *Admission) Release(tenant string, numBytes int64) {
	t := a.tenant(tenant)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlightBytes -= numBytes
	if t.inFlightBytes < 0 {
		t.inFlightBytes = 0
	}
}

// backoffRetryAfter implements the spec's exponential 1s -> 30s ceiling,
// doubling per consecutive throttle.
func backoffRetryAfter(consecutive int) time.Duration {
	d := time.Second
	for i := 1; i < consecutive; i++ {
		d *= 2
		if d >= 30*time.Second {
			return 30 * time.Second
		}
	}
	return d
}
