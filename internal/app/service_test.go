package service_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var discovered = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func posting(id, title, company, description string) model.Posting {
	return model.Posting{
		Source:       "test",
		ExternalID:   id,
		Title:        title,
		Company:      company,
		Description:  description,
		Category:     model.CategoryResearch,
		DiscoveredAt: discovered,
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then stats report it as stopped", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, false)
			So(stats["storage"], ShouldEqual, "memory")
		})

		Convey("Then operations fail until it is started", func() {
			_, err := svc.Rank(ctx, nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.RecordDecision(ctx, "x", model.VerdictApprove)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Recommendations(ctx, 1)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.EnqueueBatch(ctx, model.Batch{ID: "b"}), ShouldBeFalse)
			So(svc.Flagged(), ShouldBeNil)
		})
	})

	Convey("Given a config with an unknown backend", t, func() {
		cfg := config.New(context.Background())
		cfg.Storage = "floppy"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then it reports as running", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["inbox"], ShouldEqual, 0)
			So(stats["fingerprints"], ShouldEqual, 0)
			So(stats["discovery"], ShouldEqual, false)
			svc.Stop()
		})

		Convey("When stopping the service", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_RankAndDecide(t *testing.T) {
	Convey("Given a started in-memory service", t, func() {
		svc := service.New(service.WithWorkerCount(1))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		nlp := posting("1", "NLP research engineer", "Acme AI", "transformers nlp language models")
		sales := posting("2", "Sales manager", "Widgets", "quota pipeline territory")

		Convey("When ranking a batch", func() {
			results, err := svc.Rank(ctx, []model.Posting{nlp, sales, nlp})

			Convey("Then duplicates are dropped and the inbox is filled", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].Score, ShouldEqual, 50)
				recs, err := svc.Recommendations(ctx, 10)
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)

				dup, err := svc.IsDuplicate(ctx, nlp)
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})

			Convey("And approving one recommendation", func() {
				var fp model.Fingerprint
				for _, r := range results {
					if r.Posting.ExternalID == "1" {
						fp = r.Fingerprint
					}
				}
				d, err := svc.RecordDecision(ctx, fp, model.VerdictApprove)

				Convey("Then the decision is recorded and leaves the inbox", func() {
					So(err, ShouldBeNil)
					So(d.Verdict, ShouldEqual, model.VerdictApprove)
					recs, _ := svc.Recommendations(ctx, 10)
					So(recs, ShouldHaveLength, 1)
					So(recs[0].Posting.ExternalID, ShouldEqual, "2")

					history, err := svc.History(ctx, fp)
					So(err, ShouldBeNil)
					So(history, ShouldHaveLength, 1)

					in, err := svc.Insights(5)
					So(err, ShouldBeNil)
					So(in.Decisions, ShouldEqual, 1)
					So(in.Approved, ShouldEqual, 1)
				})

				Convey("Then similar postings now score above neutral", func() {
					more, err := svc.Rank(ctx, []model.Posting{
						posting("3", "NLP scientist", "Acme AI", "nlp language models research"),
					})
					So(err, ShouldBeNil)
					So(more, ShouldHaveLength, 1)
					So(more[0].Score, ShouldBeGreaterThan, 50)
				})
			})
		})

		Convey("When deciding an unknown fingerprint", func() {
			_, err := svc.RecordDecision(ctx, "deadbeef", model.VerdictRefuse)

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When ranking a posting with an empty identity", func() {
			_, err := svc.Rank(ctx, []model.Posting{{Source: "test", ExternalID: "blank"}})

			Convey("Then it is flagged for review", func() {
				So(err, ShouldBeNil)
				So(svc.Flagged(), ShouldHaveLength, 1)
				So(svc.GetStats(ctx)["flagged"], ShouldEqual, 1)
			})
		})
	})
}

func TestService_AsyncBatches(t *testing.T) {
	Convey("Given a started service with workers", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a batch is enqueued", func() {
			ok := svc.EnqueueBatch(ctx, model.Batch{
				ID:       "b-1",
				Source:   "test",
				Postings: []model.Posting{posting("1", "Go engineer", "Acme", "go services"), posting("2", "Rust engineer", "Crab", "rust systems")},
			})
			So(ok, ShouldBeTrue)

			Convey("Then the workers rank it into the inbox", func() {
				So(eventually(func() bool {
					recs, _ := svc.Recommendations(ctx, 10)
					return len(recs) == 2
				}), ShouldBeTrue)
			})
		})
	})
}

type feed struct{ postings []model.Posting }

func (f *feed) Name() string { return "feed" }

func (f *feed) Fetch(context.Context) ([]model.Posting, error) { return f.postings, nil }

func TestService_Discovery(t *testing.T) {
	Convey("Given a service with a discovery source", t, func() {
		src := &feed{postings: []model.Posting{posting("9", "Emotion AI researcher", "Affect", "affective computing")}}
		svc := service.New(service.WithSource(src, "@every 1h"))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then the immediate run fills the inbox", func() {
			So(eventually(func() bool {
				recs, _ := svc.Recommendations(ctx, 10)
				return len(recs) == 1
			}), ShouldBeTrue)
			So(svc.GetStats(ctx)["discovery"], ShouldEqual, true)
		})

		Convey("Then a manual run queues the feed again", func() {
			So(eventually(func() bool { return svc.GetStats(ctx)["inbox"] == 1 }), ShouldBeTrue)
			n, err := svc.RunDiscovery(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})

	Convey("Given a service without discovery", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then a manual run is refused", func() {
			_, err := svc.RunDiscovery(context.Background())
			So(errors.Is(err, service.ErrDiscoveryDisabled), ShouldBeTrue)
		})
	})
}

func TestService_SQLitePersistence(t *testing.T) {
	Convey("Given a service on a SQLite file", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.Storage = config.StorageSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "scout.db")
		cfg.WorkerCount = 1

		first := service.New(service.WithConfig(cfg))
		So(first.Start(ctx), ShouldBeNil)

		p := posting("1", "NLP research engineer", "Acme AI", "nlp models")
		results, err := first.Rank(ctx, []model.Posting{p})
		So(err, ShouldBeNil)
		So(results, ShouldHaveLength, 1)
		_, err = first.RecordDecision(ctx, results[0].Fingerprint, model.VerdictRefuse)
		So(err, ShouldBeNil)
		first.Stop()

		Convey("When a new service opens the same file", func() {
			second := service.New(service.WithConfig(cfg))
			So(second.Start(ctx), ShouldBeNil)
			defer second.Stop()

			Convey("Then fingerprints and learned weights survive", func() {
				dup, err := second.IsDuplicate(ctx, p)
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)

				in, err := second.Insights(5)
				So(err, ShouldBeNil)
				So(in.Decisions, ShouldEqual, 1)
				So(in.Refused, ShouldEqual, 1)

				again, err := second.Rank(ctx, []model.Posting{posting("2", "NLP engineer", "Acme AI", "nlp")})
				So(err, ShouldBeNil)
				So(again[0].Score, ShouldBeLessThan, 50)
			})
		})
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
