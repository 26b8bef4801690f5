package smt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/edgeflare/smt/pkg/pipeline/converter"
	"github.com/edgeflare/smt/pkg/pipeline/transform"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// maxLineSize bounds a single NDJSON record read by rename
const maxLineSize = 8 << 20

var renameOpts struct {
	pattern       string
	replacement   string
	target        string
	schemasEnable bool
}

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename record fields read from stdin",
	Long: `Read records from stdin, one JSON object per line, rename the top-level
fields of their key or value and write them to stdout in the same format.

  echo '{"topic":"t","value":{"a_v2":1}}' | smt rename --pattern '_v[0-9]+$' --replacement ''`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := transform.ParseTarget(renameOpts.target)
		if err != nil {
			return err
		}
		fn, err := transform.PatternRename(&transform.PatternRenameConfig{
			Pattern:     renameOpts.pattern,
			Replacement: renameOpts.replacement,
			Target:      target,
		}, zap.L().Named("rename"))
		if err != nil {
			return err
		}
		return renameStream(cmd.InOrStdin(), cmd.OutOrStdout(), fn, converter.NewRecordConverter(renameOpts.schemasEnable))
	},
}

// renameStream applies fn to every record line of in. Blank lines are skipped and
// the first failing line stops the stream.
func renameStream(in io.Reader, out io.Writer, fn transform.Func, conv *converter.RecordConverter) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	w := bufio.NewWriter(out)

	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}

		r, err := conv.Decode(b)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		renamed, err := fn(r)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if renamed == nil {
			continue
		}

		encoded, err := conv.Encode(renamed)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := w.Write(encoded); err != nil {
			return fmt.Errorf("write line %d: %w", line, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return w.Flush()
}

func init() {
	renameCmd.Flags().StringVarP(&renameOpts.pattern, "pattern", "p", "", "regular expression matched against each top-level field name")
	renameCmd.Flags().StringVarP(&renameOpts.replacement, "replacement", "r", "", "replacement for each match, $1 or ${name} refer to pattern groups")
	renameCmd.Flags().StringVarP(&renameOpts.target, "target", "t", "value", "record side to rename (key or value)")
	renameCmd.Flags().BoolVar(&renameOpts.schemasEnable, "schemas-enable", false, "keys and values carry a schema/payload envelope")
	renameCmd.MarkFlagRequired("pattern")
}
