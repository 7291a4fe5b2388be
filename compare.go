package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pricecompare/models"
	"pricecompare/storage"
)

var (
	compareJSON    bool
	compareCSVPath string
)

var compareCmd = &cobra.Command{
	Use:   "compare <query...>",
	Short: "Run one comparison and print a report",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "Print the grouped results as JSON instead of a report")
	compareCmd.Flags().StringVar(&compareCSVPath, "csv", "", "Also write the grouped results to this CSV file")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	groups, _, err := a.compare.Compare(cmd.Context(), query)
	if err != nil {
		return err
	}

	if compareCSVPath != "" {
		w, err := storage.CreateCSVFile(compareCSVPath)
		if err != nil {
			return err
		}
		if err := export(w, groups); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		a.logger.Info("Results saved to %s", compareCSVPath)
	}

	if compareJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	a.report.Print(os.Stdout, a.report.Generate(query, groups), groups)
	return nil
}

// export writes groups to w and always closes it.
func export(w storage.GroupWriter, groups []*models.ProductGroup) error {
	if err := w.WriteGroups(groups); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
