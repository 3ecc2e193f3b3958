package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var stateDeleteMetadata bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect and clear translation checkpoints",
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resumable translation checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := loadHome()
		if err != nil {
			return err
		}
		store, err := openStore(h)
		if err != nil {
			return err
		}

		entries, err := store.ListTranslationStates()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no translation checkpoints")
			return nil
		}

		paths := make([]string, 0, len(entries))
		for path := range entries {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			st := entries[path]
			fmt.Printf("%s\n", path)
			fmt.Printf("  hash:     %s\n", st.DocumentHash)
			fmt.Printf("  progress: %d/%d chunks\n", st.CurrentChunk, st.ChunksTotal)
			fmt.Printf("  output:   %s\n", st.OutputPath)
			fmt.Printf("  language: %s\n", st.TargetLanguage)
			fmt.Printf("  updated:  %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		}
		return nil
	},
}

var stateDeleteCmd = &cobra.Command{
	Use:   "delete <document-hash>",
	Short: "Delete the checkpoint for a document hash",
	Long: `Delete the translation checkpoint for a document hash. The translated
output file is left in place. With --metadata the cached metadata for the
hash is removed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := loadHome()
		if err != nil {
			return err
		}
		store, err := openStore(h)
		if err != nil {
			return err
		}

		docHash := args[0]
		if err := store.DeleteTranslationState(docHash); err != nil {
			return err
		}
		if stateDeleteMetadata {
			if err := store.DeleteMetadataCache(docHash); err != nil {
				return err
			}
		}
		fmt.Printf("deleted state for %s\n", docHash)
		return nil
	},
}

func init() {
	stateDeleteCmd.Flags().BoolVar(&stateDeleteMetadata, "metadata", false, "also delete cached metadata for the hash")
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateDeleteCmd)
}
