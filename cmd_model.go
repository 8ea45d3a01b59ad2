package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/codeclass/internal/hgnn"
	"github.com/phobologic/codeclass/internal/vocab"
)

func modelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage model parameter blobs",
	}
	cmd.AddCommand(modelInitCmd(a), modelInfoCmd(a))
	return cmd
}

func modelInitCmd(a *app) *cobra.Command {
	var (
		vocabPath string
		output    string
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a freshly initialized model for a vocabulary",
		Long: `Size a model from the vocabulary and the model section of the config,
initialize its parameters from the seed and write the parameter blob. The
blob is the exchange format with an external trainer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := vocab.Load(vocabPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Model.Seed
			}

			cfg := hgnn.ConfigFromVocab(v, a.cfg.Model.Architecture())
			m, err := hgnn.New(cfg, seed)
			if err != nil {
				return err
			}
			if err := m.SaveFile(output); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stderr, "wrote model (%d types, %d edge types, %d labels) to %s\n",
				cfg.NumTypes(), cfg.EdgeVocabSize, cfg.NumLabels, output)
			return err
		},
	}

	cmd.Flags().StringVar(&vocabPath, "vocab", "vocab.json", "vocabulary file")
	cmd.Flags().StringVarP(&output, "output", "o", "model.bin", "model file to write")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "parameter initialization seed")
	return cmd
}

func modelInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info MODEL",
		Short: "Print the architecture of a model blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := hgnn.LoadFile(args[0])
			if err != nil {
				return err
			}
			c := m.Config()
			_, err = fmt.Fprintf(a.stdout,
				"types: %d\nedge_types: %d\nlabels: %d\nembed_size: %d\ndim_size: %d\nnum_layers: %d\nheads: %d/%d/%d\nhidden: %v\ndropout: %g\n",
				c.NumTypes(), c.EdgeVocabSize, c.NumLabels, c.EmbedSize, c.DimSize, c.NumLayers,
				c.EdgeHeads, c.NodeHeads, c.PoolHeads, c.Hidden, c.Dropout)
			return err
		},
	}
}
