package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/textcnn"
)

// Metrics is one pass over a split. Loss is the mean per-example
// cross-entropy, Accuracy is a percentage in [0,100].
type Metrics struct {
	Loss     float64
	Accuracy float64
}

type tally struct {
	lossSum float64
	correct int
	n       int
}

func (t *tally) add(batchLoss float64, preds, gold []int) {
	t.lossSum += batchLoss * float64(len(gold))
	for i, p := range preds {
		if p == gold[i] {
			t.correct++
		}
	}
	t.n += len(gold)
}

func (t *tally) metrics() Metrics {
	if t.n == 0 {
		return Metrics{}
	}
	return Metrics{
		Loss:     t.lossSum / float64(t.n),
		Accuracy: 100 * float64(t.correct) / float64(t.n),
	}
}

// TrainEpoch runs one optimizer step per batch of it and returns the epoch
// averages. The context is checked between batches.
func TrainEpoch(ctx context.Context, model *textcnn.TextCNN, opt *optimizations.Adam, it *IO.Iterator, gradClip float64) (Metrics, error) {
	var t tally
	for b, err := range it.Batches() {
		if err != nil {
			return Metrics{}, err
		}
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		loss, preds := model.Step(b.Tokens, b.Labels, opt, gradClip)
		t.add(loss, preds, b.Labels)
	}
	return t.metrics(), nil
}

// Evaluate measures the model on it with dropout off. Parameters are not
// touched.
func Evaluate(ctx context.Context, model *textcnn.TextCNN, it *IO.Iterator) (Metrics, error) {
	var t tally
	for b, err := range it.Batches() {
		if err != nil {
			return Metrics{}, err
		}
		if err := ctx.Err(); err != nil {
			return Metrics{}, err
		}
		loss, preds := model.Evaluate(b.Tokens, b.Labels)
		t.add(loss, preds, b.Labels)
	}
	return t.metrics(), nil
}

// Metric is the loss and accuracy of model over it.
func Metric(model *textcnn.TextCNN, it *IO.Iterator) (Metrics, error) {
	return Evaluate(context.Background(), model, it)
}

type EpochResult struct {
	Epoch   int // 1-based
	Train   Metrics
	Valid   Metrics
	Saved   bool
	Elapsed time.Duration
}

type History []EpochResult

// ValidAccuracies is the validation accuracy curve, one entry per epoch.
func (h History) ValidAccuracies() []float64 {
	out := make([]float64, len(h))
	for i, r := range h {
		out[i] = r.Valid.Accuracy
	}
	return out
}

// EpochReporter receives every finished epoch.
type EpochReporter interface {
	Report(r EpochResult) error
}

type FitConfig struct {
	Epochs         int
	GradClip       float64
	CheckpointPath string
	Reporters      []EpochReporter
	Out            io.Writer // progress lines, os.Stdout when nil
}

// bestTracker remembers the best validation accuracy; the first epoch
// always beats the initial -1.
type bestTracker struct {
	best float64
}

func newBestTracker() *bestTracker { return &bestTracker{best: -1} }

func (b *bestTracker) improved(acc float64) bool {
	if acc > b.best {
		b.best = acc
		return true
	}
	return false
}

// Fit trains for cfg.Epochs epochs, evaluating after each one, and writes a
// checkpoint whenever validation accuracy strictly improves on the best so
// far.
func Fit(ctx context.Context, model *textcnn.TextCNN, opt *optimizations.Adam, trainIt, validIt *IO.Iterator, cfg FitConfig, log zerolog.Logger) (History, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	best := newBestTracker()
	var hist History

	for e := 1; e <= cfg.Epochs; e++ {
		start := time.Now()
		train, err := TrainEpoch(ctx, model, opt, trainIt, cfg.GradClip)
		if err != nil {
			return hist, fmt.Errorf("epoch %d train: %w", e, err)
		}
		fmt.Fprintf(out, "Train Epoch: %d \t Loss: %.4f \t Accuracy: %.2f%%\n", e, train.Loss, train.Accuracy)

		valid, err := Evaluate(ctx, model, validIt)
		if err != nil {
			return hist, fmt.Errorf("epoch %d valid: %w", e, err)
		}
		fmt.Fprintf(out, "Valid Epoch: %d \t Loss: %.4f \t Accuracy: %.2f%%\n", e, valid.Loss, valid.Accuracy)

		r := EpochResult{Epoch: e, Train: train, Valid: valid, Elapsed: time.Since(start)}
		if best.improved(valid.Accuracy) {
			if err := textcnn.Save(model, cfg.CheckpointPath); err != nil {
				return hist, fmt.Errorf("epoch %d checkpoint: %w", e, err)
			}
			r.Saved = true
			log.Info().Int("epoch", e).Float64("valid_acc", valid.Accuracy).
				Str("path", cfg.CheckpointPath).Msg("saved best checkpoint")
		}
		hist = append(hist, r)

		for _, rep := range cfg.Reporters {
			if err := rep.Report(r); err != nil {
				log.Warn().Err(err).Int("epoch", e).Msg("epoch report failed")
			}
		}
		log.Debug().Int("epoch", e).Dur("elapsed", r.Elapsed).Int("adam_steps", opt.Steps()).Msg("epoch done")
	}
	return hist, nil
}
