package repository_test

import (
	"context"
	"testing"

	"github.com/okian/vouch/internal/adapters/repository"
	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty memory store", t, func() {
		store := repository.NewMemoryStore()

		Convey("Then reading any sheet yields no rows", func() {
			rows, err := store.ReadAll(ctx, repository.SheetClicks)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})

		Convey("Then an unknown sheet is rejected", func() {
			_, err := store.ReadAll(ctx, repository.Sheet("bogus"))
			So(err, ShouldEqual, repository.ErrUnknownSheet)
			So(store.WriteAll(ctx, repository.Sheet("bogus"), nil), ShouldEqual, repository.ErrUnknownSheet)
			So(store.Append(ctx, repository.Sheet("bogus"), nil), ShouldEqual, repository.ErrUnknownSheet)
		})

		Convey("When rows are written and appended", func() {
			So(store.WriteAll(ctx, repository.SheetPairScores, [][]string{
				{"a", "b", "1"},
			}), ShouldBeNil)
			So(store.Append(ctx, repository.SheetPairScores, []string{"a", "c", "0.5"}), ShouldBeNil)

			Convey("Then reads observe insertion order and fixed width", func() {
				rows, err := store.ReadAll(ctx, repository.SheetPairScores)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, [][]string{
					{"a", "b", "1"},
					{"a", "c", "0.5"},
				})
			})

			Convey("Then WriteAll replaces, last writer wins", func() {
				So(store.WriteAll(ctx, repository.SheetPairScores, [][]string{
					{"x", "y", "0"},
				}), ShouldBeNil)
				rows, err := store.ReadAll(ctx, repository.SheetPairScores)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
			})
		})

		Convey("Then Close is a no-op", func() {
			So(store.Close(), ShouldBeNil)
		})
	})
}

func TestTablesClicks(t *testing.T) {
	ctx := context.Background()

	Convey("Given tables over a memory store", t, func() {
		tables := repository.NewTables(repository.NewMemoryStore())

		Convey("When clicks are appended", func() {
			So(tables.AppendClick(ctx, model.Click{Source: "A", Target: "b", Link: "l1"}), ShouldBeNil)
			So(tables.AppendClick(ctx, model.Click{Source: "b", Target: "a", Link: "l2"}), ShouldBeNil)

			Convey("Then Clicks returns normalized rows in order", func() {
				clicks, err := tables.Clicks(ctx)
				So(err, ShouldBeNil)
				So(clicks, ShouldResemble, []model.Click{
					{Source: "a", Target: "b", Link: "l1"},
					{Source: "b", Target: "a", Link: "l2"},
				})
			})

			Convey("Then HasParticipants is true", func() {
				known, err := tables.HasParticipants(ctx)
				So(err, ShouldBeNil)
				So(known, ShouldBeTrue)
			})
		})

		Convey("When the click log is empty", func() {
			known, err := tables.HasParticipants(ctx)
			So(err, ShouldBeNil)
			So(known, ShouldBeFalse)
		})

		Convey("When a click is missing a side", func() {
			err := tables.AppendClick(ctx, model.Click{Source: "a"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestTablesScores(t *testing.T) {
	ctx := context.Background()

	Convey("Given tables over a memory store", t, func() {
		store := repository.NewMemoryStore()
		tables := repository.NewTables(store)

		Convey("When pair scores are written and read back", func() {
			in := []types.PairScore{
				{A: "a", B: "b", Score: 1.0},
				{A: "a", B: "c", Score: 0.5},
			}
			So(tables.WritePairScores(ctx, in), ShouldBeNil)
			out, err := tables.PairScores(ctx)

			Convey("Then the round trip preserves the rows", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, in)
			})
		})

		Convey("When personal scores are written and read back", func() {
			in := []types.PersonalScore{
				{ID: "a", Score: 0.75},
				{ID: "b", Score: 0.5},
			}
			So(tables.WritePersonalScores(ctx, in), ShouldBeNil)
			out, err := tables.PersonalScores(ctx)

			Convey("Then the header row is skipped on decode", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, in)
			})
		})

		Convey("When the confirm sheet holds a header and malformed rows", func() {
			So(store.WriteAll(ctx, repository.SheetConfirmScores, [][]string{
				{"ID", "Score", ""},
				{"a", "0.9", ""},
				{"", "0.8", ""},
				{"c", "not-a-number", ""},
				{"d", "0.4", ""},
			}), ShouldBeNil)

			out, err := tables.ConfirmScores(ctx)

			Convey("Then only parsable rows survive", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []types.ConfirmScore{
					{ID: "a", Score: 0.9},
					{ID: "d", Score: 0.4},
				})
			})
		})
	})
}

func TestTablesNames(t *testing.T) {
	ctx := context.Background()

	Convey("Given tables over a memory store", t, func() {
		tables := repository.NewTables(repository.NewMemoryStore())

		Convey("When registrations are saved", func() {
			So(tables.SaveName(ctx, model.Registration{Wallet: "0xAA", Nickname: "alice"}), ShouldBeNil)
			So(tables.SaveName(ctx, model.Registration{Wallet: "0xbb", Nickname: "bob"}), ShouldBeNil)

			Convey("Then Names maps normalized wallets to nicknames", func() {
				names, err := tables.Names(ctx)
				So(err, ShouldBeNil)
				So(names, ShouldResemble, map[string]string{
					"0xaa": "alice",
					"0xbb": "bob",
				})
			})
		})

		Convey("When a registration lacks a nickname", func() {
			So(tables.SaveName(ctx, model.Registration{Wallet: "0xcc"}), ShouldNotBeNil)
		})
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sqlite store in a temp directory", t, func() {
		store, err := repository.OpenSQLite(t.TempDir() + "/vouch.db")
		So(err, ShouldBeNil)
		defer func() { So(store.Close(), ShouldBeNil) }()

		Convey("When rows are appended and rewritten", func() {
			So(store.Append(ctx, repository.SheetClicks, []string{"a", "b", "l"}), ShouldBeNil)
			So(store.Append(ctx, repository.SheetClicks, []string{"b", "a", "l"}), ShouldBeNil)

			Convey("Then reads observe insertion order", func() {
				rows, err := store.ReadAll(ctx, repository.SheetClicks)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, [][]string{
					{"a", "b", "l"},
					{"b", "a", "l"},
				})
			})

			Convey("Then WriteAll replaces the sheet atomically", func() {
				So(store.WriteAll(ctx, repository.SheetClicks, [][]string{{"x", "y", "z"}}), ShouldBeNil)
				rows, err := store.ReadAll(ctx, repository.SheetClicks)
				So(err, ShouldBeNil)
				So(rows, ShouldResemble, [][]string{{"x", "y", "z"}})
			})

			Convey("Then other sheets are untouched", func() {
				rows, err := store.ReadAll(ctx, repository.SheetNames)
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("Then an unknown sheet is rejected", func() {
			_, err := store.ReadAll(ctx, repository.Sheet("bogus"))
			So(err, ShouldEqual, repository.ErrUnknownSheet)
		})
	})

	Convey("Given an empty path", t, func() {
		_, err := repository.OpenSQLite("  ")
		So(err, ShouldNotBeNil)
	})
}
