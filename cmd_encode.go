package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/codeclass/internal/discover"
	"github.com/phobologic/codeclass/internal/lang"
	"github.com/phobologic/codeclass/internal/toon"
)

func encodeCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encode FILE",
		Short: "Print the hypergraph of one source file",
		Long: `Parse FILE and print its hypergraph: the node table (type and feature of
every node), the edge table (field name of every hyperedge) and the incidence
table (edge, node, head or tail). Output is TOON unless --json is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			langName := lang.ForExtension(filepath.Ext(path))
			if langName == "" {
				return fmt.Errorf("%s: unsupported file extension %q", path, filepath.Ext(path))
			}

			e, closeCache, err := a.encoder(cmd.Context())
			if err != nil {
				return err
			}
			defer closeCache()

			g, err := e.EncodeFile(cmd.Context(), "", discover.FileEntry{Path: path, Language: langName})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			}
			_, err = fmt.Fprintln(a.stdout, toon.EncodeGraph(g))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the graph as JSON")
	return cmd
}
