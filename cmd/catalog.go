package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathprogress/internal/catalog"
	"github.com/abhisek/mathprogress/internal/ui/theme"
)

var validateCmd = &cobra.Command{
	Use:   "validate <catalog.yaml>...",
	Short: "Check content catalogs without importing them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := catalog.NewValidator()
		if err != nil {
			return err
		}
		for _, path := range args {
			doc, err := catalog.Load(path)
			if err != nil {
				return err
			}
			if err := v.Validate(doc); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s %s: %d concepts, %d questions, %d students\n",
				theme.Correct.Render("✓ valid"), path, len(doc.Concepts), len(doc.Questions), len(doc.Students))
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Import concepts, questions and students from a content catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := catalog.Load(args[0])
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		sum, err := catalog.Import(cmd.Context(), rt.store, doc)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d concepts, %d questions, %d students.\n",
			sum.Concepts, sum.Questions, sum.Students)
		return nil
	},
}
