package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnthusAI/Tactus/bdd"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse and static-check a procedure definition.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}
			if def.Specifications != "" {
				if _, err := bdd.Parse(def.Specifications); err != nil {
					return fmt.Errorf("tactus: invalid specifications: %w", err)
				}
			}
			fmt.Printf("%s (version %s): ok\n", def.Name, def.Version)
			return nil
		},
	}
}
