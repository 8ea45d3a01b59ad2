package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/codeclass/internal/discover"
	"github.com/phobologic/codeclass/internal/vocab"
)

func vocabCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Manage vocabularies",
	}
	cmd.AddCommand(vocabBuildCmd(a))
	return cmd
}

func vocabBuildCmd(a *app) *cobra.Command {
	var (
		output  string
		langs   string
		minFreq int
	)

	cmd := &cobra.Command{
		Use:   "build ROOT",
		Short: "Build a vocabulary from a labelled corpus",
		Long: `Encode every source file under ROOT and write the vocabulary of node
types, per-type features, edge types and labels. The label of a file is the
name of the directory containing it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving root: %w", err)
			}
			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("root path: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("%s: not a directory", root)
			}

			languages, err := a.languages(langs)
			if err != nil {
				return err
			}
			files, err := discover.Files(root, languages)
			if err != nil {
				return fmt.Errorf("discovering files: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no parseable files found")
			}

			e, closeCache, err := a.encoder(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			graphs, sum, err := e.EncodeFiles(cmd.Context(), root, files)
			if err != nil {
				return err
			}
			if len(graphs) == 0 {
				return fmt.Errorf("no files could be encoded")
			}

			if !cmd.Flags().Changed("min-freq") {
				minFreq = a.cfg.Vocab.MinFreq
			}
			v := vocab.Build(graphs, minFreq)
			if err := v.Save(output); err != nil {
				return err
			}

			a.logger.Info("wrote vocabulary",
				"path", output,
				"files", sum.Encoded,
				"skipped", sum.Skipped,
				"cache_hits", sum.CacheHits,
				"types", len(v.NodeTypes()),
				"edge_types", v.NumEdgeTypes(),
				"labels", v.NumLabels())
			_, err = fmt.Fprintf(a.stderr, "wrote vocabulary of %d files (%d skipped) to %s\n", sum.Encoded, sum.Skipped, output)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "vocab.json", "vocabulary file to write")
	cmd.Flags().StringVarP(&langs, "langs", "l", "", "comma-separated languages to include")
	cmd.Flags().IntVar(&minFreq, "min-freq", 1, "drop features seen fewer times than this")
	return cmd
}
