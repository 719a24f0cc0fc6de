package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the decomposition settings and show the ID ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			req, err := decompose.RequestFromConfig(cliCtx.Config)
			if err != nil {
				return err
			}
			layout, st, err := decompose.NewService(nil, cliCtx.Logger).Layout(req)
			if err != nil {
				return err
			}
			return PrintResult(cmd, newCheckReport(layout, st))
		},
	}

	addLayoutFlags(cmd.Flags())
	return cmd
}

type zoneReport struct {
	Zone      string                    `json:"zone"`
	Min       [3]float64                `json:"min"`
	Max       [3]float64                `json:"max"`
	Divisions [3]int                    `json:"divisions"`
	Bins      int                       `json:"bins"`
	First     decomposition.PartitionID `json:"first"`
	Last      decomposition.PartitionID `json:"last"`
}

type checkReport struct {
	Linearization decomposition.Linearization    `json:"linearization"`
	OutOfRange    decomposition.OutOfRangePolicy `json:"outOfRange"`
	Partitions    int                            `json:"partitions"`
	Zones         []zoneReport                   `json:"zones"`
}

func newCheckReport(l *decomposition.Layout, st decomposition.Settings) checkReport {
	r := checkReport{
		Linearization: l.Linearization(),
		OutOfRange:    l.OutOfRangePolicy(),
		Partitions:    l.Partitions(),
	}
	for _, rg := range l.Ranges() {
		z := zoneReport{Zone: rg.Zone.String(), Bins: rg.Bins, First: rg.First, Last: rg.Last}
		if rg.Zone == decomposition.ZoneFine {
			z.Min, z.Max, z.Divisions = st.FineRegionMin, st.FineRegionMax, st.FineRegionDivision
		} else {
			z.Min, z.Max, z.Divisions = st.BaseRegionMin, st.BaseRegionMax, st.BaseRegionDivision
		}
		r.Zones = append(r.Zones, z)
	}
	return r
}

func (r checkReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "settings OK: %d partitions, %s linearization, out-of-range %s\n",
		r.Partitions, r.Linearization, r.OutOfRange)
	for _, z := range r.Zones {
		fmt.Fprintf(&sb, "%-4s  %s .. %s  divisions %s  IDs %d..%d\n",
			z.Zone, vec(z.Min), vec(z.Max), ints(z.Divisions), z.First, z.Last)
	}
	return sb.String()
}

func (r checkReport) TableHeaders() []string {
	return []string{"ZONE", "MIN", "MAX", "DIVISIONS", "BINS", "FIRST ID", "LAST ID"}
}

func (r checkReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Zones))
	for _, z := range r.Zones {
		rows = append(rows, []string{
			z.Zone, vec(z.Min), vec(z.Max), ints(z.Divisions),
			strconv.Itoa(z.Bins),
			strconv.Itoa(int(z.First)),
			strconv.Itoa(int(z.Last)),
		})
	}
	return rows
}

func vec(v [3]float64) string {
	return fmt.Sprintf("(%g %g %g)", v[0], v[1], v[2])
}

func ints(v [3]int) string {
	return fmt.Sprintf("(%d %d %d)", v[0], v[1], v[2])
}
