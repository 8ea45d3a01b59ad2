package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/codeclass/internal/discover"
	"github.com/phobologic/codeclass/internal/hgnn"
	"github.com/phobologic/codeclass/internal/model"
	"github.com/phobologic/codeclass/internal/ranking"
	"github.com/phobologic/codeclass/internal/toon"
	"github.com/phobologic/codeclass/internal/vocab"
)

const defaultBatchSize = 64

func predictCmd(a *app) *cobra.Command {
	var (
		vocabPath string
		modelPath string
		langs     string
		top       int
		batchSize int
		minProb   float64
		label     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "predict PATH...",
		Short: "Classify source files",
		Long: `Encode every file (or every source file below a directory), run the model
over them in batches and print the most probable labels of each file. When a
directory is laid out as <label>/<file>, the known labels are shown alongside
and an accuracy line is added.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vocab.Load(vocabPath)
			if err != nil {
				return err
			}
			m, err := hgnn.LoadFile(modelPath)
			if err != nil {
				return err
			}
			if err := checkCompatible(m.Config(), v); err != nil {
				return fmt.Errorf("%s does not match %s: %w", modelPath, vocabPath, err)
			}

			languages, err := a.languages(langs)
			if err != nil {
				return err
			}
			files, err := discover.Expand(args, languages)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no parseable files found")
			}

			e, closeCache, err := a.encoder(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			graphs, _, err := e.EncodeFiles(cmd.Context(), "", files)
			if err != nil {
				return err
			}

			p := &predictor{model: m, vocab: v, app: a, top: top}
			preds, err := p.predict(graphs, batchSize)
			if err != nil {
				return err
			}

			preds = ranking.SelectConfident(preds, minProb)
			if label != "" {
				preds = ranking.FilterByLabel(preds, label)
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(preds)
			}
			_, err = fmt.Fprintln(a.stdout, toon.EncodePredictions(preds))
			return err
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "vocab.json", "vocabulary file")
	cmd.Flags().StringVar(&modelPath, "model", "model.bin", "model file")
	cmd.Flags().StringVarP(&langs, "langs", "l", "", "comma-separated languages to include")
	cmd.Flags().IntVarP(&top, "top", "k", 1, "labels to show per file (0 = all)")
	cmd.Flags().IntVar(&batchSize, "batch", defaultBatchSize, "files per forward pass")
	cmd.Flags().Float64Var(&minProb, "min-prob", 0, "hide files whose top label is less probable than this")
	cmd.Flags().StringVar(&label, "label", "", "only show files whose top label contains this")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print predictions as JSON")
	return cmd
}

// checkCompatible reports whether cfg was sized for v.
func checkCompatible(cfg hgnn.Config, v *vocab.Vocab) error {
	switch {
	case !slices.Equal(cfg.FeatureSizes, v.FeatureSizes()):
		return fmt.Errorf("feature sizes %v, vocabulary has %v", cfg.FeatureSizes, v.FeatureSizes())
	case cfg.EdgeVocabSize != v.NumEdgeTypes():
		return fmt.Errorf("%d edge types, vocabulary has %d", cfg.EdgeVocabSize, v.NumEdgeTypes())
	case cfg.NumLabels != v.NumLabels():
		return fmt.Errorf("%d labels, vocabulary has %d", cfg.NumLabels, v.NumLabels())
	}
	return nil
}

type predictor struct {
	model *hgnn.Model
	vocab *vocab.Vocab
	app   *app
	top   int
}

// predict classifies graphs in batches of at most batchSize, keeping their
// order. Graphs the vocabulary cannot encode are logged and skipped.
func (p *predictor) predict(graphs []*model.Graph, batchSize int) ([]model.Prediction, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		preds   []model.Prediction
		pending []*model.Tensors
		owners  []*model.Graph
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		start := time.Now()
		logits, err := p.model.Forward(model.Collate(pending...))
		if err != nil {
			return err
		}
		p.app.metrics.ObserveForward(time.Since(start))

		probs := hgnn.Softmax(logits)
		labels, err := p.labels()
		if err != nil {
			return err
		}
		for i, g := range owners {
			pred := model.Prediction{
				File:       g.File,
				Label:      g.Label,
				Candidates: ranking.TopK(probs.Row(i), labels, p.top),
			}
			p.app.metrics.Prediction(pred.Top().Label)
			preds = append(preds, pred)
		}
		pending, owners = pending[:0], owners[:0]
		return nil
	}

	for _, g := range graphs {
		// Known labels are for display only; the model never sees them.
		unlabelled := *g
		unlabelled.Label = ""
		t, err := p.vocab.Encode(&unlabelled)
		if err != nil {
			p.app.logger.Warn("skipping file", "path", g.File, "error", err)
			continue
		}
		pending = append(pending, t)
		owners = append(owners, g)
		if len(pending) == batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return preds, nil
}

func (p *predictor) labels() ([]string, error) {
	labels := make([]string, p.vocab.NumLabels())
	for i := range labels {
		l, err := p.vocab.Label(i)
		if err != nil {
			return nil, err
		}
		labels[i] = l
	}
	return labels, nil
}
