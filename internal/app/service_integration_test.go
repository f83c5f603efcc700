package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/loftrank/internal/adapters/mq/queue"
	repository "github.com/okian/loftrank/internal/adapters/repository"
	service "github.com/okian/loftrank/internal/app"
	"github.com/okian/loftrank/internal/domain/model"
	"github.com/okian/loftrank/internal/domain/types"
)

// blockingStore holds every upsert until release is closed.
type blockingStore struct {
	repository.Store
	release chan struct{}
}

func (b *blockingStore) Upsert(ctx context.Context, e model.Entry) (model.Entry, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return model.Entry{}, ctx.Err()
	}
	return b.Store.Upsert(ctx, e)
}

func seasonBatch(n int) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"id": "P%03d", "line": "L%d", "week1": {"rank": %d, "totalBirds": 100, "points": 10, "f": 1.2}, "week2": [{"rank": %d, "totalBirds": 50}]}`,
			i, i%3, i+1, (i%50)+1)
	}
	sb.WriteString("]")
	return sb.String()
}

func TestServiceIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	Convey("Given a service backed by sqlite", t, func() {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
		svc := startService(t,
			service.WithStoreDriver(repository.DriverSQLite, dsn),
			service.WithCacheStandings(true),
			service.WithQueueSize(100),
		)
		Reset(func() { svc.Stop() })

		Convey("When a season is imported in several async jobs", func() {
			raws := rawBatch(t, seasonBatch(25))
			var wg sync.WaitGroup
			ids := make([]string, 4)
			for j := 0; j < 4; j++ {
				wg.Add(1)
				go func(j int) {
					defer wg.Done()
					job, _, err := svc.SubmitImport(ctx, "2025", fmt.Sprintf("bulk-%d", j), raws)
					if err == nil {
						ids[j] = job.ID
					}
				}(j)
			}
			wg.Wait()

			Convey("Then every job completes and the report is stable", func() {
				for _, id := range ids {
					So(id, ShouldNotBeEmpty)
					So(waitForJob(svc, id), ShouldEqual, types.JobDone)
				}

				first, err := svc.SeasonReport(ctx, "2025", service.ReportOptions{})
				So(err, ShouldBeNil)
				So(first.EntryCount, ShouldEqual, 25)
				So(first.Entries[0].ID, ShouldEqual, "P000")

				second, err := svc.SeasonReport(ctx, "2025", service.ReportOptions{})
				So(err, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When two seasons are imported", func() {
			_, err := svc.ImportBatch(ctx, "2024", rawBatch(t, seasonBatch(3)))
			So(err, ShouldBeNil)
			_, err = svc.ImportBatch(ctx, "2025", rawBatch(t, seasonBatch(5)))
			So(err, ShouldBeNil)

			Convey("Then each season is its own cohort", func() {
				a, _ := svc.SeasonReport(ctx, "2024", service.ReportOptions{})
				b, _ := svc.SeasonReport(ctx, "2025", service.ReportOptions{})
				So(a.EntryCount, ShouldEqual, 3)
				So(b.EntryCount, ShouldEqual, 5)
				So(a.AvgIndex, ShouldNotEqual, b.AvgIndex)
			})
		})
	})
}

func TestServiceBackpressure(t *testing.T) {
	ctx := context.Background()

	Convey("Given a single worker stuck on a slow store", t, func() {
		store := &blockingStore{Store: repository.NewMemoryStore(ctx), release: make(chan struct{})}
		svc := startService(t,
			service.WithStore(store),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		var once sync.Once
		releaseStore := func() { once.Do(func() { close(store.release) }) }
		Reset(func() {
			releaseStore()
			svc.Stop()
		})

		body := `[{"id": "A", "week1": {"rank": 1, "totalBirds": 10}}]`
		running, _, err := svc.SubmitImport(ctx, "2024", "r1", rawBatch(t, body))
		So(err, ShouldBeNil)
		So(waitForStatus(svc, running.ID, types.JobRunning), ShouldBeTrue)

		Convey("When more jobs are submitted than the queue holds", func() {
			var accepted []types.Job
			var refusedID string
			var refusedErr error
			for i := 2; i <= 6 && refusedErr == nil; i++ {
				requestID := fmt.Sprintf("r%d", i)
				job, _, err := svc.SubmitImport(ctx, "2024", requestID, rawBatch(t, body))
				if err != nil {
					refusedID, refusedErr = requestID, err
					break
				}
				accepted = append(accepted, job)
			}

			Convey("Then the overflow is refused and may be retried", func() {
				So(errors.Is(refusedErr, queue.ErrFull), ShouldBeTrue)
				So(len(accepted), ShouldBeLessThanOrEqualTo, 2)

				releaseStore()
				for _, job := range accepted {
					So(waitForJob(svc, job.ID), ShouldEqual, types.JobDone)
				}
				retry, dup, err := svc.SubmitImport(ctx, "2024", refusedID, rawBatch(t, body))
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
				So(waitForJob(svc, retry.ID), ShouldEqual, types.JobDone)
			})
		})
	})
}

func waitForStatus(svc *service.Service, id string, want types.JobStatus) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, err := svc.Job(context.Background(), id); err == nil && job.Status == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
