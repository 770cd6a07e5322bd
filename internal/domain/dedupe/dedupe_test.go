package dedupe_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rallyrank/rallyrank/internal/domain/dedupe"
)

func TestMatchGuard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh match guard", t, func() {
		g := dedupe.NewMatchGuard()

		Convey("The first sighting of a match records it", func() {
			So(g.SeenAndRecord(ctx, "match-1"), ShouldBeFalse)
			So(g.Size(), ShouldEqual, 1)

			Convey("And the second sighting is reported as seen", func() {
				So(g.SeenAndRecord(ctx, "match-1"), ShouldBeTrue)
				So(g.Size(), ShouldEqual, 1)
			})
		})

		Convey("Unrecord lets a match through again", func() {
			So(g.SeenAndRecord(ctx, "match-2"), ShouldBeFalse)
			g.Unrecord(ctx, "match-2")
			So(g.SeenAndRecord(ctx, "match-2"), ShouldBeFalse)
		})

		Convey("Unrecording an unknown match is harmless", func() {
			g.Unrecord(ctx, "never-seen")
			So(g.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a guard bounded to three matches", t, func() {
		g := dedupe.NewMatchGuard(dedupe.WithMaxSize(3))

		for i := 0; i < 3; i++ {
			So(g.SeenAndRecord(ctx, fmt.Sprintf("m-%d", i)), ShouldBeFalse)
		}

		Convey("A fourth match evicts the oldest", func() {
			So(g.SeenAndRecord(ctx, "m-3"), ShouldBeFalse)
			So(g.Size(), ShouldEqual, 3)
			So(g.SeenAndRecord(ctx, "m-0"), ShouldBeFalse)
		})
	})
}
