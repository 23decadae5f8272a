package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetnerd/internal/builder"
	"sheetnerd/internal/convert"
	"sheetnerd/internal/sheet"
)

var (
	convertTo         string
	convertOut        string
	convertNoValidate bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert a sheet between the V1 and V2 dialects",
	Long: `Convert rewrites a sheet into the other dialect. Conversion is lossy
in both directions; every field or section the target dialect cannot
carry is dropped and reported as a warning on stderr.

Without -o the converted sheet is printed to stdout. With -o the sheet
is validated and written atomically; --no-validate skips the gate.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "Target dialect: v1 or v2 (required)")
	convertCmd.Flags().StringVarP(&convertOut, "output", "o", "", "Output file (default: print to stdout)")
	convertCmd.Flags().BoolVar(&convertNoValidate, "no-validate", false, "Skip the pre-write validation gate")
	convertCmd.MarkFlagRequired("to")
}

func runConvert(cmd *cobra.Command, args []string) error {
	target, ok := sheet.ParseFormat(convertTo)
	if !ok {
		return fmt.Errorf("invalid target format: %s (valid: v1, v2)", convertTo)
	}

	m, err := loadModel(args[0])
	if err != nil {
		return err
	}

	var result *convert.Result
	if target == sheet.FormatV2 {
		result, err = convert.ToV2(m)
	} else {
		result, err = convert.ToV1(m)
	}
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", args[0], err)
	}
	logger.Debug("converted sheet",
		zap.String("file", args[0]),
		zap.String("to", target.String()),
		zap.Int("warnings", len(result.Warnings)))

	for _, warn := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), styles.Warning.Render("warning: "+warn.String()))
	}

	if convertOut == "" {
		text, err := builder.Render(result.Model)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	}

	if convertNoValidate {
		text, err := builder.Render(result.Model)
		if err != nil {
			return err
		}
		if err := os.WriteFile(convertOut, []byte(text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", convertOut, err)
		}
	} else if err := builder.WriteModel(convertOut, result.Model); err != nil {
		return fmt.Errorf("failed to write %s: %w", convertOut, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
		styles.Success.Render("Wrote"),
		convertOut,
		styles.Muted.Render(fmt.Sprintf("(%s, %d samples, %d warnings)", target, len(result.Model.Samples()), len(result.Warnings))))
	return nil
}
