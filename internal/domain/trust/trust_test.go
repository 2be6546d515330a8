package trust_test

import (
	"testing"

	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/internal/domain/trust"
	"github.com/okian/vouch/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func clicks(rows ...[2]string) []model.Click {
	out := make([]model.Click, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Click{Source: r[0], Target: r[1], Link: "l"})
	}
	return out
}

func TestParticipants(t *testing.T) {
	Convey("Given a click log with repeats and mixed case", t, func() {
		log := clicks([2]string{"B", "a"}, [2]string{"a", "b"}, [2]string{"a", "C"})

		Convey("Then Participants should be sorted, deduplicated and normalized", func() {
			So(trust.Participants(log), ShouldResemble, []string{"a", "b", "c"})
		})
	})

	Convey("Given an empty click log", t, func() {
		So(trust.Participants(nil), ShouldBeEmpty)
	})

	Convey("Given rows with an empty side", t, func() {
		log := []model.Click{{Source: "a", Target: ""}, {Source: "", Target: "b"}}
		So(trust.Participants(log), ShouldResemble, []string{"a", "b"})
	})
}

func TestPairScores(t *testing.T) {
	Convey("Given clicks a->b, b->a, a->c", t, func() {
		log := clicks([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"a", "c"})
		participants := trust.Participants(log)
		pairs := trust.PairScores(log, participants)

		Convey("Then the mutual pair scores 1.0, one-way 0.5, absent 0.0", func() {
			So(pairs, ShouldResemble, []types.PairScore{
				{A: "a", B: "b", Score: 1.0},
				{A: "a", B: "c", Score: 0.5},
				{A: "b", B: "c", Score: 0.0},
			})
		})

		Convey("Then every pair is canonical and in the score set", func() {
			for _, p := range pairs {
				So(p.A, ShouldBeLessThan, p.B)
				So(p.Score, ShouldBeIn, []float64{0.0, 0.5, 1.0})
			}
		})
	})

	Convey("Given storage order of a directed click should not matter", t, func() {
		forward := trust.PairScores(clicks([2]string{"a", "b"}), []string{"a", "b"})
		backward := trust.PairScores(clicks([2]string{"b", "a"}), []string{"a", "b"})

		Convey("Then the pair score is symmetric", func() {
			So(forward[0].Score, ShouldEqual, backward[0].Score)
			So(forward[0].A, ShouldEqual, backward[0].A)
			So(forward[0].B, ShouldEqual, backward[0].B)
		})
	})

	Convey("Given duplicate clicks in one direction", t, func() {
		log := clicks([2]string{"a", "b"}, [2]string{"a", "b"}, [2]string{"a", "b"})
		pairs := trust.PairScores(log, []string{"a", "b"})

		Convey("Then repeats do not inflate the score past 0.5", func() {
			So(pairs[0].Score, ShouldEqual, 0.5)
		})
	})

	Convey("Given a single participant", t, func() {
		pairs := trust.PairScores(clicks([2]string{"a", "a"}), []string{"a"})

		Convey("Then there are no pairs", func() {
			So(pairs, ShouldBeEmpty)
		})
	})
}

func TestPersonalScores(t *testing.T) {
	Convey("Given the pair scores for clicks a<->b, a->c", t, func() {
		log := clicks([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"a", "c"})
		participants := trust.Participants(log)
		pairs := trust.PairScores(log, participants)
		personal := trust.PersonalScores(pairs, trust.PairParticipants(pairs))

		Convey("Then the means match the worked scenario", func() {
			So(personal, ShouldResemble, []types.PersonalScore{
				{ID: "a", Score: 0.75},
				{ID: "b", Score: 0.5},
				{ID: "c", Score: 0.25},
			})
		})

		Convey("Then every personal score lies in [0,1]", func() {
			for _, s := range personal {
				So(s.Score, ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})

	Convey("Given a participant with no incident pairs", t, func() {
		personal := trust.PersonalScores(nil, []string{"lonely"})

		Convey("Then its score is 0.0", func() {
			So(personal, ShouldResemble, []types.PersonalScore{{ID: "lonely", Score: 0.0}})
		})
	})

	Convey("Given no pairs and no participants", t, func() {
		So(trust.PersonalScores(nil, nil), ShouldBeEmpty)
	})
}

func TestPairParticipants(t *testing.T) {
	Convey("Given pair rows", t, func() {
		pairs := []types.PairScore{
			{A: "b", B: "c", Score: 0},
			{A: "a", B: "b", Score: 1},
		}

		Convey("Then participants are sorted and deduplicated", func() {
			So(trust.PairParticipants(pairs), ShouldResemble, []string{"a", "b", "c"})
		})
	})
}
