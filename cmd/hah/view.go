package main

import (
	"github.com/spf13/cobra"

	"github.com/recera/hah/cmd/hah/internal/ui"
	"github.com/recera/hah/pkg/hah"
)

func newViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view <file>",
		Short: "Inspect a compiled document",
		Long:  `Opens an interactive view of a document's source, node tree, generated output and diagnostics.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proj, err := loadProject()
			if err != nil {
				return err
			}
			defer proj.Close()

			doc, err := hah.Open(args[0], proj.cfg.ToHah(proj.logger))
			if err != nil {
				return err
			}
			return ui.RunInspector(doc)
		},
	}
}
