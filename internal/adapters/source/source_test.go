package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/scout/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const yamlFeed = `
- source: remoteok
  external_id: "101"
  title: Staff ML Engineer
  company: Acme AI
  description: Build emotion recognition models.
  remote: true
  category: emotion_ai
- external_id: "102"
  title: Research Scientist
  company: Lab
  category: Research
  discovered_at: 2025-01-02T03:04:05Z
`

const jsonFeed = `{"postings": [{"source": "hn", "external_id": "7", "title": "Go developer", "company": "Gophers", "category": "general_ai"}]}`

func writeFile(dir, name, body string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
	return path
}

func TestFileSource(t *testing.T) {
	Convey("Given a feed directory", t, func() {
		dir := t.TempDir()
		fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		ctx := context.Background()

		Convey("When fetching a YAML list", func() {
			src := NewFileSource(writeFile(dir, "feed.yaml", yamlFeed), WithName("feed"), WithClock(func() time.Time { return fixed }))
			postings, err := src.Fetch(ctx)

			Convey("Then postings are decoded and stamped", func() {
				So(err, ShouldBeNil)
				So(src.Name(), ShouldEqual, "feed")
				So(postings, ShouldHaveLength, 2)
				So(postings[0].Source, ShouldEqual, "remoteok")
				So(postings[0].Remote, ShouldBeTrue)
				So(postings[0].Category, ShouldEqual, model.CategoryEmotionAI)
				So(postings[0].DiscoveredAt.Equal(fixed), ShouldBeTrue)
				So(postings[1].Source, ShouldEqual, "feed")
				So(postings[1].DiscoveredAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)), ShouldBeTrue)
			})
		})

		Convey("When fetching a JSON document", func() {
			src := NewFileSource(writeFile(dir, "feed.json", jsonFeed))
			postings, err := src.Fetch(ctx)

			Convey("Then the postings key is read", func() {
				So(err, ShouldBeNil)
				So(src.Name(), ShouldEqual, "file")
				So(postings, ShouldHaveLength, 1)
				So(postings[0].Title, ShouldEqual, "Go developer")
				So(postings[0].Category, ShouldEqual, model.CategoryGeneral)
			})
		})

		Convey("When the file is missing", func() {
			_, err := NewFileSource(filepath.Join(dir, "absent.yaml")).Fetch(ctx)

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the extension is unknown", func() {
			_, err := NewFileSource(writeFile(dir, "feed.txt", "x")).Fetch(ctx)

			Convey("Then the format is rejected", func() {
				So(errors.Is(err, ErrUnsupportedFormat), ShouldBeTrue)
			})
		})

		Convey("When the YAML is malformed", func() {
			_, err := NewFileSource(writeFile(dir, "bad.yaml", "postings: [unclosed")).Fetch(ctx)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := NewFileSource(writeFile(dir, "feed.yaml", yamlFeed)).Fetch(cctx)

			Convey("Then Fetch returns the context error", func() {
				So(err, ShouldEqual, context.Canceled)
			})
		})
	})
}
