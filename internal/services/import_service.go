package services

import (
	"context"

	"livrocaixa/internal/auth"
	"livrocaixa/internal/core"
	"livrocaixa/internal/csvimport"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/store"
)

// Preview is a parsed file ready for review.
type Preview struct {
	Rows  []csvimport.ParsedRow
	Stats csvimport.Stats
}

type ImportService struct {
	committer   *csvimport.Committer
	publisher   Publisher
	invalidator Invalidator
	logger      *applog.Logger
}

func NewImportService(s store.Store, batchSize int, publisher Publisher, invalidator Invalidator, logger *applog.Logger) *ImportService {
	if logger == nil {
		logger = applog.Default()
	}
	return &ImportService{
		committer: &csvimport.Committer{
			Transactions: s,
			Accounts:     s,
			Categories:   s,
			BatchSize:    batchSize,
			Logger:       logger,
		},
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger.WithComponent(applog.ComponentImport),
	}
}

// Preview parses text and pre-targets the valid rows with d.
func (s *ImportService) Preview(text string, d csvimport.Defaults) (Preview, error) {
	rows, err := csvimport.Parse(text, d)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Rows: rows, Stats: csvimport.Summarize(rows)}, nil
}

// Commit writes the selected rows on behalf of the current user. On a
// partial failure the result still lists what was written, and that part is
// announced.
func (s *ImportService) Commit(ctx context.Context, rows []csvimport.ParsedRow) (csvimport.Result, error) {
	user, err := auth.CurrentUser(ctx)
	if err != nil {
		return csvimport.Result{}, err
	}
	res, err := s.committer.Commit(ctx, rows, user.ID)
	if len(res.IDs) > 0 {
		announce(ctx, s.logger, s.invalidator, s.publisher, applog.OpImport, res.Effect)
	}
	return res, err
}

// Projected is the effect committing the selected rows would have.
func (p Preview) Projected() core.Effect {
	var eff core.Effect
	for _, r := range csvimport.Selected(p.Rows) {
		eff.Apply(core.Transaction{Kind: r.Kind, Amount: r.Amount, AccountID: r.AccountID, Date: r.Date, Status: r.Status}, 1)
	}
	return eff
}
