package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/vouch/internal/domain/model"
	"github.com/okian/vouch/internal/domain/types"
)

// Sheet header rows. The click and pair score sheets are headerless logs;
// the remaining sheets carry a header row that decoders skip.
var (
	headerScores = []string{"ID", "Score", ""}
	headerNames  = []string{"Nickname", "Wallet", ""}
)

// Tables layers typed row codecs over a raw sheet Store.
type Tables struct {
	store Store
}

// NewTables wraps a Store with typed accessors.
func NewTables(store Store) *Tables {
	return &Tables{store: store}
}

// Clicks returns the full interaction log.
func (t *Tables) Clicks(ctx context.Context) ([]model.Click, error) {
	rows, err := t.store.ReadAll(ctx, SheetClicks)
	if err != nil {
		return nil, err
	}
	out := make([]model.Click, 0, len(rows))
	for _, row := range rows {
		src := types.NormalizeID(row[0])
		dst := types.NormalizeID(row[1])
		if src == "" || dst == "" {
			continue
		}
		out = append(out, model.Click{Source: src, Target: dst, Link: row[2]})
	}
	return out, nil
}

// AppendClick records one interaction event at the end of the click log.
func (t *Tables) AppendClick(ctx context.Context, c model.Click) error {
	src := types.NormalizeID(c.Source)
	dst := types.NormalizeID(c.Target)
	if src == "" || dst == "" {
		return fmt.Errorf("click requires source and target")
	}
	return t.store.Append(ctx, SheetClicks, []string{src, dst, c.Link})
}

// HasParticipants reports whether the click log names anyone at all.
func (t *Tables) HasParticipants(ctx context.Context) (bool, error) {
	rows, err := t.store.ReadAll(ctx, SheetClicks)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if types.NormalizeID(row[0]) != "" || types.NormalizeID(row[1]) != "" {
			return true, nil
		}
	}
	return false, nil
}

// PairScores reads the derived pair score sheet.
func (t *Tables) PairScores(ctx context.Context) ([]types.PairScore, error) {
	rows, err := t.store.ReadAll(ctx, SheetPairScores)
	if err != nil {
		return nil, err
	}
	out := make([]types.PairScore, 0, len(rows))
	for _, row := range rows {
		a := types.NormalizeID(row[0])
		b := types.NormalizeID(row[1])
		if a == "" || b == "" {
			continue
		}
		score, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			continue
		}
		out = append(out, types.PairScore{A: a, B: b, Score: score})
	}
	return out, nil
}

// WritePairScores replaces the pair score sheet.
func (t *Tables) WritePairScores(ctx context.Context, pairs []types.PairScore) error {
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.A, p.B, formatScore(p.Score)})
	}
	return t.store.WriteAll(ctx, SheetPairScores, rows)
}

// PersonalScores reads the derived personal score sheet.
func (t *Tables) PersonalScores(ctx context.Context) ([]types.PersonalScore, error) {
	rows, err := t.store.ReadAll(ctx, SheetPersonalScores)
	if err != nil {
		return nil, err
	}
	return decodeScoreRows(rows, func(id string, score float64) types.PersonalScore {
		return types.PersonalScore{ID: id, Score: score}
	}), nil
}

// WritePersonalScores replaces the personal score sheet.
func (t *Tables) WritePersonalScores(ctx context.Context, scores []types.PersonalScore) error {
	rows := make([][]string, 0, len(scores)+1)
	rows = append(rows, headerScores)
	for _, s := range scores {
		rows = append(rows, []string{s.ID, formatScore(s.Score), ""})
	}
	return t.store.WriteAll(ctx, SheetPersonalScores, rows)
}

// ConfirmScores reads the externally produced confirm score sheet.
func (t *Tables) ConfirmScores(ctx context.Context) ([]types.ConfirmScore, error) {
	rows, err := t.store.ReadAll(ctx, SheetConfirmScores)
	if err != nil {
		return nil, err
	}
	return decodeScoreRows(rows, func(id string, score float64) types.ConfirmScore {
		return types.ConfirmScore{ID: id, Score: score}
	}), nil
}

// Names returns the wallet -> nickname mapping.
func (t *Tables) Names(ctx context.Context) (map[string]string, error) {
	rows, err := t.store.ReadAll(ctx, SheetNames)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		if row[0] == headerNames[0] && row[1] == headerNames[1] {
			continue
		}
		nickname := row[0]
		wallet := types.NormalizeID(row[1])
		if nickname == "" || wallet == "" {
			continue
		}
		out[wallet] = nickname
	}
	return out, nil
}

// SaveName appends one wallet -> nickname registration, writing the header
// row first on an empty sheet.
func (t *Tables) SaveName(ctx context.Context, reg model.Registration) error {
	wallet := types.NormalizeID(reg.Wallet)
	if wallet == "" || reg.Nickname == "" {
		return fmt.Errorf("registration requires wallet and nickname")
	}
	rows, err := t.store.ReadAll(ctx, SheetNames)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		if err := t.store.Append(ctx, SheetNames, headerNames); err != nil {
			return err
		}
	}
	return t.store.Append(ctx, SheetNames, []string{reg.Nickname, wallet, ""})
}

// decodeScoreRows parses (id, score) rows, skipping headers and malformed
// lines rather than failing the whole read.
func decodeScoreRows[T any](rows [][]string, build func(id string, score float64) T) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		id := types.NormalizeID(row[0])
		if id == "" {
			continue
		}
		score, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			continue
		}
		out = append(out, build(id, score))
	}
	return out
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', -1, 64)
}
