package pipeline

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// LabelReport summarises a label run.
type LabelReport struct {
	Examined int
	Written  int
	ByStatus map[verdict.Status]int
	ByLabel  map[verdict.Label]int
}

// Label resolves a verdict for every submission the labeler has not seen.
func (p *Pipeline) Label(ctx context.Context, labeler *verdict.Labeler) (LabelReport, error) {
	report := LabelReport{ByStatus: make(map[verdict.Status]int), ByLabel: make(map[verdict.Label]int)}

	err := p.each(ctx, repository.SelectUnlabeled, true, func(page []model.Submission) error {
		updates := make([]repository.LabelUpdate, 0, len(page))
		for _, s := range page {
			res := labeler.Label(s.Title, s.Flair, votes(s))
			updates = append(updates, repository.LabelUpdate{ID: s.ID, Label: res.Label, Status: res.Status})
			report.ByStatus[res.Status]++
			if res.Status.Labeled() {
				report.ByLabel[res.Label]++
			}
			metrics.RecordLabelOutcome(string(res.Status), string(res.Label))
		}
		n, err := p.store.SetLabels(ctx, updates)
		if err != nil {
			metrics.RecordErrorByComponent("label", "write")
			return err
		}
		report.Examined += len(page)
		report.Written += n
		return nil
	})

	fields := []logger.Field{logger.Int("examined", report.Examined), logger.Int("written", report.Written)}
	for st, n := range report.ByStatus {
		fields = append(fields, logger.Int("status_"+string(st), n))
	}
	p.log.Info(ctx, "label complete", fields...)
	return report, err
}

func votes(s model.Submission) []verdict.Comment {
	out := make([]verdict.Comment, len(s.Comments))
	for i, c := range s.Comments {
		out[i] = verdict.Comment{Body: c.Body, Score: c.Score, IsSubmitter: c.IsSubmitter}
	}
	return out
}
