package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rallyrank/rallyrank/internal/adapters/repository"
	"github.com/rallyrank/rallyrank/internal/domain/model"
)

func testKey(playerID string) model.RatingKey {
	return model.RatingKey{
		PlayerID: playerID,
		SeasonID: "season-1",
		Sport:    model.SportPickleball,
		GameType: model.GameTypeSingles,
	}
}

func defaultSeed() repository.Seed {
	return repository.Seed{Rating: 1500, RatingDeviation: 350, Volatility: 0.06, Note: "system defaults"}
}

func TestMemStoreGetOrCreate(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		store := repository.NewMemStore()

		Convey("When a rating is requested for a new player", func() {
			row, created, err := store.GetOrCreate(ctx, testKey("alice"), defaultSeed())
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)

			Convey("Then the row carries the seed values", func() {
				So(row.ID, ShouldNotBeEmpty)
				So(row.Rating, ShouldEqual, 1500)
				So(row.RatingDeviation, ShouldEqual, 350)
				So(row.Volatility, ShouldEqual, 0.06)
				So(row.IsProvisional, ShouldBeTrue)
				So(row.MatchesPlayed, ShouldEqual, 0)
				So(row.PeakRating, ShouldEqual, 1500)
				So(row.LowestRating, ShouldEqual, 1500)
			})

			Convey("And a second call returns the same row without creating", func() {
				again, createdAgain, err := store.GetOrCreate(ctx, testKey("alice"), defaultSeed())
				So(err, ShouldBeNil)
				So(createdAgain, ShouldBeFalse)
				So(again.ID, ShouldEqual, row.ID)

				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("Get without create reports missing players", func() {
			_, err := store.Get(ctx, testKey("nobody"))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemStoreApplyMatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with two players", t, func() {
		store := repository.NewMemStore()
		alice, _, err := store.GetOrCreate(ctx, testKey("alice"), defaultSeed())
		So(err, ShouldBeNil)
		bob, _, err := store.GetOrCreate(ctx, testKey("bob"), defaultSeed())
		So(err, ShouldBeNil)

		Convey("When a match's movement is applied", func() {
			now := time.Now()
			alice.Rating = 1560
			alice.MatchesPlayed = 1
			alice.LastUpdatedAt = &now
			bob.Rating = 1440
			bob.MatchesPlayed = 1
			bob.LastUpdatedAt = &now

			err := store.ApplyMatch(ctx, []repository.RatingUpdate{
				{Rating: alice, History: model.RatingHistory{MatchID: "m-1", RatingBefore: 1500, RatingAfter: 1560, Delta: 60, RDBefore: 350, RDAfter: 300, Reason: model.ReasonMatchWin}},
				{Rating: bob, History: model.RatingHistory{MatchID: "m-1", RatingBefore: 1500, RatingAfter: 1440, Delta: -60, RDBefore: 350, RDAfter: 300, Reason: model.ReasonMatchLoss}},
			})
			So(err, ShouldBeNil)

			Convey("Then both rows reflect the movement", func() {
				got, err := store.Get(ctx, testKey("alice"))
				So(err, ShouldBeNil)
				So(got.Rating, ShouldEqual, 1560)
				So(got.MatchesPlayed, ShouldEqual, 1)
			})

			Convey("And the match history holds both ledger rows", func() {
				rows, err := store.MatchHistory(ctx, "m-1")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].ID, ShouldNotBeEmpty)
				So(rows[0].RatingAfter-rows[0].RatingBefore, ShouldEqual, rows[0].Delta)
			})
		})

		Convey("An update naming an unknown row fails without writing anything", func() {
			ghost := alice.Clone()
			ghost.ID = "missing"
			alice.Rating = 1999

			err := store.ApplyMatch(ctx, []repository.RatingUpdate{
				{Rating: alice, History: model.RatingHistory{MatchID: "m-2", Reason: model.ReasonMatchWin}},
				{Rating: ghost, History: model.RatingHistory{MatchID: "m-2", Reason: model.ReasonMatchLoss}},
			})
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			got, err := store.Get(ctx, testKey("alice"))
			So(err, ShouldBeNil)
			So(got.Rating, ShouldEqual, 1500)

			rows, err := store.MatchHistory(ctx, "m-2")
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}

func TestMemStoreReversal(t *testing.T) {
	ctx := context.Background()

	Convey("Given a store with an applied match", t, func() {
		store := repository.NewMemStore()
		alice, _, err := store.GetOrCreate(ctx, testKey("alice"), defaultSeed())
		So(err, ShouldBeNil)

		now := time.Now()
		alice.Rating = 1580
		alice.RatingDeviation = 300
		alice.MatchesPlayed = 1
		alice.LastUpdatedAt = &now
		err = store.ApplyMatch(ctx, []repository.RatingUpdate{
			{Rating: alice, History: model.RatingHistory{MatchID: "m-9", RatingBefore: 1500, RatingAfter: 1580, Delta: 80, RDBefore: 350, RDAfter: 300, Reason: model.ReasonMatchWin}},
		})
		So(err, ShouldBeNil)

		Convey("When the match is reversed", func() {
			err := store.ApplyReversal(ctx, "m-9", []repository.RatingRestore{
				{PlayerRatingID: alice.ID, Rating: 1500, RatingDeviation: 350},
			}, "[REVERSED]")
			So(err, ShouldBeNil)

			Convey("Then the row is back at its before values", func() {
				got, err := store.Get(ctx, testKey("alice"))
				So(err, ShouldBeNil)
				So(got.Rating, ShouldEqual, 1500)
				So(got.RatingDeviation, ShouldEqual, 350)
				So(got.MatchesPlayed, ShouldEqual, 0)
			})

			Convey("And the ledger rows are annotated, not deleted", func() {
				rows, err := store.MatchHistory(ctx, "m-9")
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Note, ShouldContainSubstring, "[REVERSED]")
			})
		})
	})
}

func TestMemStoreInactivityQueries(t *testing.T) {
	ctx := context.Background()

	Convey("Given players with different activity timestamps", t, func() {
		now := time.Now()
		store := repository.NewMemStore(repository.WithClock(func() time.Time { return now }))

		stale, _, err := store.GetOrCreate(ctx, testKey("stale"), defaultSeed())
		So(err, ShouldBeNil)
		fresh, _, err := store.GetOrCreate(ctx, testKey("fresh"), defaultSeed())
		So(err, ShouldBeNil)
		maxed, _, err := store.GetOrCreate(ctx, testKey("maxed"), defaultSeed())
		So(err, ShouldBeNil)

		long := now.Add(-60 * 24 * time.Hour)
		recent := now.Add(-2 * 24 * time.Hour)

		stale.RatingDeviation = 250
		stale.LastUpdatedAt = &long
		fresh.RatingDeviation = 250
		fresh.LastUpdatedAt = &recent
		maxed.RatingDeviation = 350
		maxed.LastUpdatedAt = &long
		err = store.ApplyMatch(ctx, []repository.RatingUpdate{
			{Rating: stale, History: model.RatingHistory{MatchID: "s-1", Reason: model.ReasonMatchWin}},
			{Rating: fresh, History: model.RatingHistory{MatchID: "s-1", Reason: model.ReasonMatchLoss}},
			{Rating: maxed, History: model.RatingHistory{MatchID: "s-2", Reason: model.ReasonMatchLoss}},
		})
		So(err, ShouldBeNil)

		Convey("ListInactive returns only stale rows below the deviation cap", func() {
			rows, err := store.ListInactive(ctx, "", now.Add(-30*24*time.Hour), 350)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 1)
			So(rows[0].PlayerID, ShouldEqual, "stale")
		})

		Convey("A season filter narrows the sweep", func() {
			rows, err := store.ListInactive(ctx, "other-season", now.Add(-30*24*time.Hour), 350)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("UpdateDeviation writes through by row ID", func() {
			So(store.UpdateDeviation(ctx, stale.ID, 275), ShouldBeNil)
			got, err := store.Get(ctx, testKey("stale"))
			So(err, ShouldBeNil)
			So(got.RatingDeviation, ShouldEqual, 275)
		})

		Convey("UpdateDeviation on an unknown row fails", func() {
			err := store.UpdateDeviation(ctx, "missing", 275)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemStoreTopN(t *testing.T) {
	ctx := context.Background()

	Convey("Given several rated players", t, func() {
		store := repository.NewMemStore()
		ratings := map[string]float64{"a": 1450, "b": 1700, "c": 1600}
		for id, r := range ratings {
			row, _, err := store.GetOrCreate(ctx, testKey(id), defaultSeed())
			So(err, ShouldBeNil)
			row.Rating = r
			err = store.ApplyMatch(ctx, []repository.RatingUpdate{
				{Rating: row, History: model.RatingHistory{MatchID: "seed-" + id, Reason: model.ReasonMatchWin}},
			})
			So(err, ShouldBeNil)
		}

		Convey("TopN orders by rating descending and truncates", func() {
			rows, err := store.TopN(ctx, "season-1", model.SportPickleball, model.GameTypeSingles, 2)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0].PlayerID, ShouldEqual, "b")
			So(rows[1].PlayerID, ShouldEqual, "c")
		})

		Convey("A different game type sees nothing", func() {
			rows, err := store.TopN(ctx, "season-1", model.SportPickleball, model.GameTypeDoubles, 10)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}
