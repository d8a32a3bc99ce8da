package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdssp/pdscrawler/etl"
	"github.com/pdssp/pdscrawler/extract/ode"
)

// CheckExtractMain holds the flags of the check_extract subcommand. It
// never fetches anything; it only inspects what extract has already
// written, so it has no concurrency knob.
type CheckExtractMain struct {
	Root      string
	DataSetID string
	PageSize  int
}

func NewCheckExtractMain() *CheckExtractMain {
	return &CheckExtractMain{Root: "./data", PageSize: ode.DefaultPageSize}
}

func (m *CheckExtractMain) Run(stdout io.Writer) error {
	env, err := openEnvironment(m.Root, 1)
	if err != nil {
		return err
	}
	defer env.Close()

	sel := etl.Selection{DataSetID: m.DataSetID}
	results, err := env.Driver.CheckExtract(sel, m.PageSize, env.PageIndex)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "%s\tmissing_pages=%v\tpds3_files=%d\tchecksum_ok=%v\n",
			r.DataSetID, r.MissingPages, r.PDS3FileCount, r.ChecksumOK)
	}
	return nil
}

// NewCheckExtractCommand builds the check_extract subcommand: a dry-run
// resumability report, one line per collection.
func NewCheckExtractCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewCheckExtractMain()
	cc := &cobra.Command{
		Use:   "check_extract",
		Short: "report missing record pages and PDS3 catalog files per collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return m.Run(stdout)
		},
	}
	flags := cc.Flags()
	flags.StringVar(&m.Root, "root", m.Root, "root storage path")
	flags.StringVar(&m.DataSetID, "dataset_id", m.DataSetID, "limit to a single collection by dataset id")
	flags.IntVar(&m.PageSize, "page_size", m.PageSize, "records requested per page, for computing the expected page count")
	return cc
}

func init() {
	subcommandFns["check_extract"] = NewCheckExtractCommand
}
