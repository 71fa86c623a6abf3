package matching_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/domain/dedupe"
	"github.com/okian/scout/internal/domain/features"
	"github.com/okian/scout/internal/domain/matching"
	"github.com/okian/scout/internal/domain/model"
	"github.com/okian/scout/internal/domain/preference"
	"github.com/okian/scout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init(logger.WithWriter(io.Discard))
	os.Exit(m.Run())
}

// flakyRegistry fails every Register call after the first `ok` calls.
type flakyRegistry struct {
	*dedupe.Store
	ok    int
	calls int
}

func (f *flakyRegistry) Register(ctx context.Context, p model.Posting) (model.Registration, error) {
	f.calls++
	if f.calls > f.ok {
		return model.Registration{}, model.ErrStorageUnavailable
	}
	return f.Store.Register(ctx, p)
}

type fixture struct {
	store  *repository.MemoryStore
	dedupe *dedupe.Store
	model  *preference.Model
	engine *matching.Engine
}

func newFixture(opts ...matching.Option) fixture {
	store := repository.NewMemoryStore()
	d, err := dedupe.NewStore(store)
	So(err, ShouldBeNil)
	ex, err := features.NewExtractor()
	So(err, ShouldBeNil)
	m, err := preference.NewModel(store)
	So(err, ShouldBeNil)
	return fixture{store: store, dedupe: d, model: m, engine: matching.NewEngine(d, ex, m, opts...)}
}

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func job(id, title, company string, at time.Time) model.Posting {
	return model.Posting{
		Source:       "feed",
		ExternalID:   id,
		Title:        title,
		Company:      company,
		Description:  title + " at " + company,
		DiscoveredAt: at,
		Category:     model.CategoryGeneral,
	}
}

func TestEngine_Rank(t *testing.T) {
	Convey("Given a matching engine with an untrained model", t, func() {
		ctx := context.Background()
		f := newFixture()

		Convey("When ranking zero candidates", func() {
			res, err := f.engine.Rank(ctx, nil)

			Convey("Then it returns an empty result and no error", func() {
				So(err, ShouldBeNil)
				So(res, ShouldNotBeNil)
				So(res, ShouldBeEmpty)
			})
		})

		Convey("When all candidates tie on score", func() {
			res, err := f.engine.Rank(ctx, []model.Posting{
				job("c", "Gamma role", "C", t0.Add(time.Hour)),
				job("b", "Beta role", "B", t0),
				job("a", "Alpha role", "A", t0),
			})

			Convey("Then earlier discovery wins and the key breaks remaining ties", func() {
				So(err, ShouldBeNil)
				So(res, ShouldHaveLength, 3)
				So(res[0].Posting.ExternalID, ShouldEqual, "a")
				So(res[1].Posting.ExternalID, ShouldEqual, "b")
				So(res[2].Posting.ExternalID, ShouldEqual, "c")
				for i, r := range res {
					So(r.Rank, ShouldEqual, i+1)
					So(r.Score, ShouldEqual, 50)
					So(r.Tier, ShouldEqual, model.TierGoodMatch)
				}
			})
		})

		Convey("When a batch repeats a posting", func() {
			p := job("x", "NLP Engineer", "Acme", t0)
			copyOf := p
			copyOf.ExternalID = "x-repost"
			copyOf.Title = "nlp  ENGINEER"
			res, err := f.engine.Rank(ctx, []model.Posting{p, copyOf})

			Convey("Then only the first occurrence survives", func() {
				So(err, ShouldBeNil)
				So(res, ShouldHaveLength, 1)
				So(res[0].Posting.ExternalID, ShouldEqual, "x")
			})
		})

		Convey("When a posting reappears in a later batch", func() {
			p := job("y", "Data Scientist", "Beta", t0)
			first, err := f.engine.Rank(ctx, []model.Posting{p})
			So(err, ShouldBeNil)
			second, err := f.engine.Rank(ctx, []model.Posting{p, job("z", "Designer", "Gamma", t0)})

			Convey("Then it is not surfaced again", func() {
				So(err, ShouldBeNil)
				So(first, ShouldHaveLength, 1)
				So(second, ShouldHaveLength, 1)
				So(second[0].Posting.ExternalID, ShouldEqual, "z")

				dup, err := f.engine.IsDuplicate(ctx, p)
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When a posting has no title or company", func() {
			blank := model.Posting{Source: "feed", ExternalID: "blank", DiscoveredAt: t0}
			res, err := f.engine.Rank(ctx, []model.Posting{blank})
			again, err2 := f.engine.Rank(ctx, []model.Posting{blank})

			Convey("Then it is still surfaced and flagged for review", func() {
				So(err, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(res, ShouldHaveLength, 1)
				So(again, ShouldHaveLength, 1)
				So(f.dedupe.Flagged(), ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a trained model", t, func() {
		ctx := context.Background()
		f := newFixture()
		liked := job("liked", "NLP Research Engineer", "Acme", t0)
		res, err := f.engine.Rank(ctx, []model.Posting{liked})
		So(err, ShouldBeNil)
		rec, err := f.engine.Features(ctx, res[0].Fingerprint)
		So(err, ShouldBeNil)
		_, err = f.model.Update(ctx, preference.Change{Fingerprint: res[0].Fingerprint, Verdict: model.VerdictApprove, Features: rec})
		So(err, ShouldBeNil)

		Convey("When ranking a mixed batch", func() {
			out, err := f.engine.Rank(ctx, []model.Posting{
				job("late", "Sales Manager", "Other", t0),
				job("nlp", "NLP Engineer", "Acme", t0.Add(time.Hour)),
			})

			Convey("Then the preferred posting ranks first despite later discovery", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0].Posting.ExternalID, ShouldEqual, "nlp")
				So(out[0].Score, ShouldBeGreaterThan, out[1].Score)
			})
		})
	})

	Convey("Given a minimum display score", t, func() {
		ctx := context.Background()
		f := newFixture(matching.WithMinDisplayScore(60))
		p := job("hidden", "Anything", "Anyone", t0)

		Convey("When every candidate scores below it", func() {
			res, err := f.engine.Rank(ctx, []model.Posting{p})

			Convey("Then nothing is shown but the posting is registered", func() {
				So(err, ShouldBeNil)
				So(res, ShouldBeEmpty)
				dup, _ := f.engine.IsDuplicate(ctx, p)
				So(dup, ShouldBeTrue)
			})
		})
	})

	Convey("Given a store that fails part way through a batch", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		d, err := dedupe.NewStore(store)
		So(err, ShouldBeNil)
		ex, _ := features.NewExtractor()
		m, _ := preference.NewModel(store)
		flaky := &flakyRegistry{Store: d, ok: 2}
		engine := matching.NewEngine(flaky, ex, m)
		batch := []model.Posting{
			job("1", "One", "A", t0),
			job("2", "Two", "B", t0),
			job("3", "Three", "C", t0),
		}

		Convey("When ranking", func() {
			res, err := engine.Rank(ctx, batch)

			Convey("Then the error surfaces and earlier registrations are undone", func() {
				So(res, ShouldBeNil)
				So(errors.Is(err, model.ErrStorageUnavailable), ShouldBeTrue)
				for _, p := range batch {
					dup, err := d.IsDuplicate(ctx, p)
					So(err, ShouldBeNil)
					So(dup, ShouldBeFalse)
				}
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, 0)
			})
		})
	})
}

func TestEngine_Features(t *testing.T) {
	Convey("Given a ranked posting", t, func() {
		ctx := context.Background()
		f := newFixture(matching.WithCacheSize(1))
		res, err := f.engine.Rank(ctx, []model.Posting{job("a", "Golang Developer", "Acme", t0), job("b", "Rust Developer", "Beta", t0)})
		So(err, ShouldBeNil)
		So(res, ShouldHaveLength, 2)

		Convey("When its features were evicted from the cache", func() {
			var goFP model.Fingerprint
			for _, r := range res {
				if r.Posting.ExternalID == "a" {
					goFP = r.Fingerprint
				}
			}
			rec, err := f.engine.Features(ctx, goFP)

			Convey("Then they are re-extracted from the stored posting", func() {
				So(err, ShouldBeNil)
				So(rec.Keywords, ShouldContainKey, "golang")
				So(rec.Company, ShouldEqual, "acme")
			})
		})

		Convey("When the fingerprint is unknown", func() {
			_, err := f.engine.Features(ctx, "nope")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestSort(t *testing.T) {
	Convey("Sort orders by score, discovery, key and fingerprint", t, func() {
		rs := []model.RankedResult{
			{Score: 10, Posting: job("b", "", "", t0), Fingerprint: "2"},
			{Score: 90, Posting: job("z", "", "", t0.Add(time.Hour)), Fingerprint: "3"},
			{Score: 10, Posting: job("a", "", "", t0), Fingerprint: "1"},
			{Score: 10, Posting: job("a", "", "", t0), Fingerprint: "0"},
		}
		matching.Sort(rs)
		So(rs[0].Posting.ExternalID, ShouldEqual, "z")
		So(rs[1].Fingerprint, ShouldEqual, model.Fingerprint("0"))
		So(rs[2].Fingerprint, ShouldEqual, model.Fingerprint("1"))
		So(rs[3].Posting.ExternalID, ShouldEqual, "b")
	})
}
