package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
)

func newRunCmd() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Decompose the mesh and write the partition list",
		Long: "run reads the cell centres once, assigns each cell a processor ID and\n" +
			"writes the partition list once.  With --case DIR the dictionary, centres\n" +
			"and output default to DIR/system/myManualDecomposeDict, DIR/0/C and\n" +
			"DIR/constant/cellDecomposition.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			req, err := decompose.RequestFromConfig(cliCtx.Config)
			if err != nil {
				return err
			}
			req.Trace = trace

			deps, err := buildService(cliCtx, false)
			if err != nil {
				return err
			}
			res, err := deps.Service.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, runReport{res})
		},
	}

	fs := cmd.Flags()
	addLayoutFlags(fs)
	addIOFlags(fs)
	fs.BoolVar(&trace, "trace", false, "log every classified cell at debug level")
	return cmd
}

// addLayoutFlags registers the flags that select and shape the layout.
func addLayoutFlags(fs *pflag.FlagSet) {
	fs.String("case", "", "OpenFOAM case directory")
	fs.String("dict", "", "myManualDecomposeDict path")
	fs.String("linearization", "legacy", "ID linearization (legacy, row-major)")
	fs.String("out-of-range", "raw", "base cells outside the grid (raw, clamp, reject)")
	bindFlag(fs, "case", "input.case")
	bindFlag(fs, "dict", "decomposition.dict")
	bindFlag(fs, "linearization", "decomposition.linearization")
	bindFlag(fs, "out-of-range", "decomposition.out_of_range")
}

// addIOFlags registers the input, output, worker and metrics flags.
func addIOFlags(fs *pflag.FlagSet) {
	fs.String("centers", "", "cell centres, a path or s3://bucket/key")
	fs.String("format", "", "centre format (foam, csv, json; default by extension)")
	fs.Int("cells", 0, "cell count, needed when the centres field is uniform")
	fs.String("out", "", "partition list, a path or s3://bucket/key")
	fs.String("out-format", "", "partition list format (foam, csv, json; default by extension)")
	fs.Int("workers", 1, "parallel workers; 1 runs sequentially")
	fs.Int("chunk-size", 65536, "cells per parallel chunk")
	fs.String("metrics-textfile", "", "write metrics in text format to this file")
	fs.String("push-gateway", "", "push metrics to this Pushgateway URL")

	for flag, key := range map[string]string{
		"centers":          "input.centers",
		"format":           "input.format",
		"cells":            "input.cells",
		"out":              "output.path",
		"out-format":       "output.format",
		"workers":          "worker.concurrency",
		"chunk-size":       "worker.chunk_size",
		"metrics-textfile": "metrics.textfile",
		"push-gateway":     "metrics.push_gateway",
	} {
		bindFlag(fs, flag, key)
	}
}

// runReport renders a decomposition result.
type runReport struct {
	*decompose.Result
}

func (r runReport) String() string {
	s := r.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "run         %s\n", r.RunID)
	fmt.Fprintf(&sb, "centres     %s\n", r.Centers)
	fmt.Fprintf(&sb, "output      %s\n", r.Output)
	fmt.Fprintf(&sb, "cells       %d (fine %d, base %d, outside base %d)\n", s.Cells, s.FineCells, s.BaseCells, s.OutsideBase)
	fmt.Fprintf(&sb, "partitions  %d (empty %d, stray cells %d)\n", s.Partitions, s.EmptyPartitions, s.Stray)
	fmt.Fprintf(&sb, "per part    min %d, max %d, mean %.2f, stddev %.2f\n", s.Min, s.Max, s.Mean, s.StdDev)
	fmt.Fprintf(&sb, "imbalance   %.3f\n", s.Imbalance)
	fmt.Fprintf(&sb, "took        %s (%d workers)\n", r.Duration.Round(time.Microsecond), r.Workers)
	return sb.String()
}

func (r runReport) TableHeaders() []string {
	return []string{"ID", "ZONE", "CELLS"}
}

func (r runReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Summary.Counts))
	for id, n := range r.Summary.Counts {
		rows = append(rows, []string{
			strconv.Itoa(id),
			zonesOf(r.Ranges, decomposition.PartitionID(id)),
			strconv.Itoa(n),
		})
	}
	return rows
}

// zonesOf names the zones whose ID range holds id.  Legacy strides can leave
// IDs inside a range that no bin reaches.
func zonesOf(ranges []decomposition.IDRange, id decomposition.PartitionID) string {
	var names []string
	for _, r := range ranges {
		if id >= r.First && id <= r.Last {
			names = append(names, r.Zone.String())
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "/")
}
