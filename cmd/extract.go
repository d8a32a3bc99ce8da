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

// ExtractMain holds the flags of the extract subcommand. TypeExtract picks
// which of the three extraction phases to run; discover has no network-bound
// concurrency knob of its own, so Concurrency only affects ode_records and
// pds3_objects.
type ExtractMain struct {
	Root        string
	TypeExtract string
	Planet      string
	DataSetID   string
	Sample      int
	Concurrency int
}

func NewExtractMain() *ExtractMain {
	return &ExtractMain{
		Root:        "./data",
		TypeExtract: "ode_collections",
		Concurrency: 4,
	}
}

func (m *ExtractMain) Run() error {
	env, err := openEnvironment(m.Root, m.Concurrency)
	if err != nil {
		return err
	}
	defer env.Close()

	sel := etl.Selection{Planet: m.Planet, DataSetID: m.DataSetID, Sample: m.Sample}
	ctx := context.Background()

	var phase etl.Phase
	switch m.TypeExtract {
	case "ode_collections", "ode_collections_save":
		phase = etl.PhaseDiscover
	case "ode_records":
		phase = etl.PhaseExtractRecords
	case "pds3_objects":
		phase = etl.PhaseExtractPDS3
	default:
		return fmt.Errorf("unknown --type_extract %q", m.TypeExtract)
	}

	report, err := env.Driver.Run(ctx, phase, sel)
	if err != nil {
		return err
	}
	for _, f := range report.Failures() {
		log.Printf("extract: %s failed: %s", f.DataSetID, f.Err)
	}
	return nil
}

// NewExtractCommand builds the extract subcommand. type_extract selects
// among the extraction modes: discovering collections, persisting them
// to the registry, fetching record pages, and scraping PDS3 catalog
// files.
func NewExtractCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	m := NewExtractMain()
	cc := &cobra.Command{
		Use:   "extract",
		Short: "discover collections, fetch record pages, or scrape PDS3 catalog files",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := m.Run(); err != nil {
				return err
			}
			log.Println("extract done in", time.Since(start))
			return nil
		},
	}
	flags := cc.Flags()
	flags.StringVar(&m.Root, "root", m.Root, "root storage path")
	flags.StringVar(&m.TypeExtract, "type_extract", m.TypeExtract,
		"one of ode_collections, ode_collections_save, ode_records, pds3_objects")
	flags.StringVar(&m.Planet, "planet", m.Planet, "planet name, passed through to the ODE discovery query")
	flags.StringVar(&m.DataSetID, "dataset_id", m.DataSetID, "limit to a single collection by dataset id")
	flags.IntVar(&m.Sample, "sample", m.Sample, "bound extraction to the first N pages")
	flags.IntVar(&m.Concurrency, "concurrency", m.Concurrency, "number of collections processed in parallel")
	return cc
}

func init() {
	subcommandFns["extract"] = NewExtractCommand
}
