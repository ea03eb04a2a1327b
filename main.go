package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/textcnn"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	p, err := params.LoadFromEnv()
	if err != nil {
		log.Error().Err(err).Msg("load config")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := run(ctx, p, log, os.Stdout); err != nil {
		log.Error().Err(err).Str("profile", p.Profile).Msg("textcnn failed")
		stop()
		os.Exit(1)
	}
}

// summary is what a finished run produced.
type summary struct {
	RunID     string
	History   History
	BestLoss  float64 // validation loss of the reloaded best checkpoint
	BestAcc   float64 // validation accuracy of the reloaded best checkpoint
	VocabSize int
}

// run is the whole pipeline: split, vocabulary, embeddings, train with
// checkpointing, then reload the best checkpoint and measure it.
func run(ctx context.Context, p *params.Params, log zerolog.Logger, out io.Writer) (*summary, error) {
	t1 := time.Now()
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Str("profile", p.Profile).Logger()

	dev := params.DetectDevice(p.Compute.Workers)
	log.Info().Stringer("device", dev).Str("cpu", dev.Describe()).Msg("starting")
	rng := rand.New(rand.NewSource(p.Data.Seed))

	trainRecs, validRecs, err := IO.PrepareSplits(p.Data, p.Out, rng, log)
	if err != nil {
		return nil, err
	}

	tok, err := IO.NewWordTokenizer(p.Data.Lang, true)
	if err != nil {
		return nil, err
	}
	trainEx, err := IO.Preprocess(trainRecs, tok)
	if err != nil {
		return nil, err
	}
	validEx, err := IO.Preprocess(validRecs, tok)
	if err != nil {
		return nil, err
	}

	vocab := IO.BuildVocab(trainEx, IO.VocabOptions{MaxSize: p.Data.MaxVocab, MinFreq: p.Data.MinFreq})
	labels, err := IO.BuildLabels(trainEx, p.Model.NumClass)
	if err != nil {
		return nil, err
	}
	emb, cov, err := IO.LoadPretrained(vocab, IO.EmbeddingOptions{
		Name:    p.Data.PretrainedEmb,
		Dir:     p.Data.VectorsDir,
		Dim:     p.Data.EmbedDim,
		UnkInit: p.Data.UnkInit,
	}, rng)
	if err != nil {
		return nil, err
	}
	log.Info().Int("vocab", vocab.Size()).Int("pretrained", cov.Found).
		Strs("labels", labels.Values).Msg("built vocabulary")

	cfg := textcnn.Config{
		VocabSize:   vocab.Size(),
		EmbedDim:    p.Data.EmbedDim,
		DimChannel:  p.Model.DimChannel,
		KernelWins:  p.Model.KernelHeight,
		DropoutRate: p.Model.DropoutRate,
		NumClass:    p.Model.NumClass,
	}
	trainIt, err := IO.NewIterator(trainEx, vocab, labels, IO.IteratorOptions{
		BatchSize: p.Data.BatchSize,
		Shuffle:   p.Data.Shuffle,
		FixLength: p.Data.FixLength,
		MinLength: cfg.MaxWindow(),
		Device:    dev,
		Rand:      rng,
	})
	if err != nil {
		return nil, err
	}
	validIt, err := IO.NewIterator(validEx, vocab, labels, IO.IteratorOptions{
		BatchSize: p.Data.ValBatchSize,
		FixLength: p.Data.FixLength,
		MinLength: cfg.MaxWindow(),
		Device:    dev,
	})
	if err != nil {
		return nil, err
	}

	model, err := textcnn.New(cfg, emb, dev, rng)
	if err != nil {
		return nil, err
	}
	opt := optimizations.NewAdam(p.Compute.LearningRate, p.Compute.AdamBeta1, p.Compute.AdamBeta2,
		p.Compute.AdamEps, p.Compute.WeightDecay)

	if err := os.MkdirAll(p.Out.CheckpointDir, 0o755); err != nil {
		return nil, err
	}
	if err := IO.ExportVocabJSON(filepath.Join(p.Out.CheckpointDir, "vocab.json"), vocab); err != nil {
		return nil, err
	}
	trainLog, err := newCSVLog(p.Out.LogPath, runID)
	if err != nil {
		return nil, err
	}
	defer trainLog.Close()

	fmt.Fprintf(out, "Train: %d  Valid: %d  Vocab: %d  Batches/epoch: %d\n",
		trainIt.Len(), validIt.Len(), vocab.Size(), trainIt.NumBatches())

	hist, err := Fit(ctx, model, opt, trainIt, validIt, FitConfig{
		Epochs:         p.Compute.Epochs,
		GradClip:       p.Compute.GradClip,
		CheckpointPath: p.CheckpointPath(),
		Reporters:      []EpochReporter{trainLog, newEpochGauges(p.Out.MetricsPath, runID)},
		Out:            out,
	}, log)
	if err != nil {
		return nil, err
	}
	asciiPlot(out, hist.ValidAccuracies())

	fmt.Fprintln(out, "Computing model metrics")
	best, err := textcnn.Load(p.CheckpointPath(), dev, rng)
	if err != nil {
		return nil, fmt.Errorf("reload best checkpoint: %w", err)
	}
	m, err := Metric(best, validIt)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Best valid loss: %.4f \t Best valid accuracy: %.2f%%\n", m.Loss, m.Accuracy)
	log.Info().Float64("valid_loss", m.Loss).Float64("valid_acc", m.Accuracy).Dur("elapsed", time.Since(t1)).Msg("done")

	return &summary{RunID: runID, History: hist, BestLoss: m.Loss, BestAcc: m.Accuracy, VocabSize: vocab.Size()}, nil
}
