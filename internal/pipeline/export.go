package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jasonherngwang/peoples-court/internal/adapters/objectstore"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/training"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// ExportReport summarises a training export.
type ExportReport struct {
	Destination string
	Total       int
	Counts      map[verdict.Label]int
	Seen        map[verdict.Label]int
}

// Export samples the labeled corpus into a class-balanced JSONL file at dest,
// a local path or s3://bucket/key.
func (p *Pipeline) Export(ctx context.Context, sampler *training.Sampler, w objectstore.Writer, dest string) (ExportReport, error) {
	err := p.each(ctx, repository.SelectLabeled, false, func(page []model.Submission) error {
		for _, s := range page {
			if ex, ok := training.FromSubmission(s); ok {
				sampler.Offer(ex)
			}
		}
		return nil
	})
	if err != nil {
		return ExportReport{}, fmt.Errorf("pipeline: read labeled corpus: %w", err)
	}

	examples := sampler.Examples()
	var buf bytes.Buffer
	if err := training.WriteJSONL(&buf, examples); err != nil {
		return ExportReport{}, fmt.Errorf("pipeline: encode export: %w", err)
	}
	if err := w.Put(ctx, dest, buf.Bytes(), "application/x-ndjson"); err != nil {
		return ExportReport{}, fmt.Errorf("pipeline: write %s: %w", dest, err)
	}

	report := ExportReport{
		Destination: dest,
		Total:       len(examples),
		Counts:      sampler.Counts(),
		Seen:        make(map[verdict.Label]int, len(verdict.Labels)),
	}
	fields := []logger.Field{logger.String("destination", dest), logger.Int("total", report.Total)}
	for _, l := range verdict.Labels {
		report.Seen[l] = sampler.Seen(l)
		fields = append(fields, logger.Int("sampled_"+string(l), report.Counts[l]), logger.Int("seen_"+string(l), report.Seen[l]))
	}
	p.log.Info(ctx, "export complete", fields...)
	return report, nil
}
