// booking-storm hammers one (patient, doctor, day) triple with concurrent
// booking attempts to demonstrate that the double-booking invariant holds
// under contention: exactly one attempt may succeed, everything else must
// come back as a conflict or lock contention, never as a second row.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clinicbridge/clinic-bot/internal/booking"
	"github.com/clinicbridge/clinic-bot/internal/clinic"
	"github.com/clinicbridge/clinic-bot/internal/config"
	"github.com/clinicbridge/clinic-bot/internal/db"
	redisclient "github.com/clinicbridge/clinic-bot/internal/redis"
	"github.com/clinicbridge/clinic-bot/internal/schedule"
)

type metrics struct {
	total     int64
	booked    int64
	conflict  int64
	contended int64
	failed    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, err error) {
	atomic.AddInt64(&m.total, 1)

	var conflict *booking.ConflictError
	switch {
	case err == nil:
		atomic.AddInt64(&m.booked, 1)
	case errors.As(err, &conflict):
		atomic.AddInt64(&m.conflict, 1)
	case errors.Is(err, booking.ErrBookingContended):
		atomic.AddInt64(&m.contended, 1)
	default:
		atomic.AddInt64(&m.failed, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) stats() (avg, p50, p95 time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	avg = sum / time.Duration(len(sorted))
	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	workers := flag.Int("workers", 16, "concurrent workers")
	attempts := flag.Int("attempts", 200, "booking attempts per worker")
	doctorID := flag.Int64("doctor", 1, "doctor id to storm")
	phone := flag.String("phone", "9999999999", "patient phone to storm with")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.StorageBackend != config.BackendPostgres {
		log.Fatal("booking-storm requires the postgres backend")
	}

	ctx := context.Background()

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer rdb.Close()

	store := clinic.NewPgStore(pgPool, cfg.Location)
	locker := redisclient.NewRedisBookingLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(store, locker, cfg.Location)

	// All attempts target tomorrow so the current-instant filter never
	// interferes with the run.
	day := time.Now().In(cfg.Location).AddDate(0, 0, 1)
	slots := schedule.GenerateSlots(day, cfg.Window, cfg.SlotInterval, cfg.Location)

	log.Printf("storming doctor=%d phone=%s day=%s workers=%d attempts=%d",
		*doctorID, *phone, clinic.DayKey(day, cfg.Location), *workers, *attempts)

	var m metrics
	var wg sync.WaitGroup
	start := time.Now()

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < *attempts; i++ {
				slot := slots[rand.Intn(len(slots))]
				t0 := time.Now()
				_, err := svc.Book(ctx, *doctorID, *phone, slot)
				m.record(time.Since(t0), err)
			}
		}()
	}
	wg.Wait()

	avg, p50, p95 := m.stats()
	log.Printf("done in %s: total=%d booked=%d conflict=%d contended=%d failed=%d",
		time.Since(start), m.total, m.booked, m.conflict, m.contended, m.failed)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)

	if m.booked > 1 {
		log.Fatalf("INVARIANT VIOLATED: %d bookings committed for one patient/doctor/day", m.booked)
	}
	log.Println("invariant held: at most one booking committed")
}
