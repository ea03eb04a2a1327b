package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// csvLog appends one row per epoch to the training log.
type csvLog struct {
	f     *os.File
	w     *csv.Writer
	runID string
}

func newCSVLog(path, runID string) (*csvLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create training log: %w", err)
	}
	w := csv.NewWriter(f)
	w.Write([]string{"run_id", "epoch", "train_loss", "train_acc", "valid_loss", "valid_acc", "saved"})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return &csvLog{f: f, w: w, runID: runID}, nil
}

func (l *csvLog) Report(r EpochResult) error {
	l.w.Write([]string{
		l.runID,
		strconv.Itoa(r.Epoch),
		strconv.FormatFloat(r.Train.Loss, 'f', 4, 64),
		strconv.FormatFloat(r.Train.Accuracy, 'f', 2, 64),
		strconv.FormatFloat(r.Valid.Loss, 'f', 4, 64),
		strconv.FormatFloat(r.Valid.Accuracy, 'f', 2, 64),
		strconv.FormatBool(r.Saved),
	})
	l.w.Flush()
	return l.w.Error()
}

func (l *csvLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// epochGauges mirrors the latest epoch into a node_exporter textfile.
type epochGauges struct {
	path string
	reg  *prometheus.Registry

	epoch     prometheus.Gauge
	loss      *prometheus.GaugeVec
	accuracy  *prometheus.GaugeVec
	bestAcc   prometheus.Gauge
	saves     prometheus.Counter
	epochTime prometheus.Histogram
}

func newEpochGauges(path, runID string) *epochGauges {
	labels := prometheus.Labels{"run_id": runID}
	g := &epochGauges{
		path: path,
		reg:  prometheus.NewRegistry(),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "textcnn_epoch",
			Help:        "Last finished epoch",
			ConstLabels: labels,
		}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "textcnn_loss",
			Help:        "Mean cross-entropy of the last epoch",
			ConstLabels: labels,
		}, []string{"split"}),
		accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "textcnn_accuracy_percent",
			Help:        "Accuracy of the last epoch",
			ConstLabels: labels,
		}, []string{"split"}),
		bestAcc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "textcnn_best_valid_accuracy_percent",
			Help:        "Validation accuracy of the saved checkpoint",
			ConstLabels: labels,
		}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "textcnn_checkpoint_saves_total",
			Help:        "Checkpoints written this run",
			ConstLabels: labels,
		}),
		epochTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "textcnn_epoch_duration_seconds",
			Help:        "Wall time of train+valid per epoch",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	g.reg.MustRegister(g.epoch, g.loss, g.accuracy, g.bestAcc, g.saves, g.epochTime)
	return g
}

func (g *epochGauges) Report(r EpochResult) error {
	g.epoch.Set(float64(r.Epoch))
	g.loss.WithLabelValues("train").Set(r.Train.Loss)
	g.loss.WithLabelValues("valid").Set(r.Valid.Loss)
	g.accuracy.WithLabelValues("train").Set(r.Train.Accuracy)
	g.accuracy.WithLabelValues("valid").Set(r.Valid.Accuracy)
	if r.Saved {
		g.bestAcc.Set(r.Valid.Accuracy)
		g.saves.Inc()
	}
	g.epochTime.Observe(r.Elapsed.Seconds())
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(g.path, g.reg)
}

// asciiPlot draws a crude vertical bar chart of percentages (0..100).
func asciiPlot(w io.Writer, values []float64) {
	const height = 10
	n := len(values)
	if n == 0 {
		fmt.Fprintln(w, "no data to plot")
		return
	}
	var b strings.Builder
	for row := height; row >= 1; row-- {
		threshold := 100 * float64(row) / float64(height)
		for _, v := range values {
			if v >= threshold {
				b.WriteString("█")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("─", n))
	b.WriteString("\n")
	// epoch index every 5 columns
	for i := range values {
		if i%5 == 0 {
			b.WriteString(strconv.Itoa(i % 10))
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString("\n")
	io.WriteString(w, b.String())
}
