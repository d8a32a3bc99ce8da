package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdssp/pdscrawler/etl"
)

// TransformMain holds the flags of the transform subcommand. TypeStac picks
// which of the two STAC-building phases to run.
type TransformMain struct {
	Root        string
	TypeStac    string
	DataSetID   string
	Concurrency int
}

func NewTransformMain() *TransformMain {
	return &TransformMain{Root: "./data", TypeStac: "records", Concurrency: 4}
}

func (m *TransformMain) Run() error {
	env, err := openEnvironment(m.Root, m.Concurrency)
	if err != nil {
		return err
	}
	defer env.Close()

	sel := etl.Selection{DataSetID: m.DataSetID}
	ctx := context.Background()

	var phase etl.Phase
	switch m.TypeStac {
	case "records":
		phase = etl.PhaseTransformRecords
	case "pds3_objects":
		phase = etl.PhaseTransformPDS3
	default:
		return fmt.Errorf("unknown --type_stac %q", m.TypeStac)
	}

	report, err := env.Driver.Run(ctx, phase, sel)
	if err != nil {
		return err
	}
	for _, f := range report.Failures() {
		log.Printf("transform: %s failed: %s", f.DataSetID, f.Err)
	}
	return nil
}

// NewTransformCommand builds the transform subcommand: build or refine the
// STAC tree from whatever extract has already cached on disk.
func NewTransformCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewTransformMain()
	cc := &cobra.Command{
		Use:   "transform",
		Short: "build or refine the STAC tree from cached records and PDS3 catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := m.Run(); err != nil {
				return err
			}
			log.Println("transform done in", time.Since(start))
			return nil
		},
	}
	flags := cc.Flags()
	flags.StringVar(&m.Root, "root", m.Root, "root storage path")
	flags.StringVar(&m.TypeStac, "type_stac", m.TypeStac, "one of records, pds3_objects")
	flags.StringVar(&m.DataSetID, "dataset_id", m.DataSetID, "limit to a single collection by dataset id")
	flags.IntVar(&m.Concurrency, "concurrency", m.Concurrency, "number of collections processed in parallel")
	return cc
}

func init() {
	subcommandFns["transform"] = NewTransformCommand
}
