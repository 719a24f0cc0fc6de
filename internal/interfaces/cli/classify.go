package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/meshdecomp/internal/application/decompose"
	"github.com/turtacn/meshdecomp/internal/domain/decomposition"
	"github.com/turtacn/meshdecomp/pkg/errors"
)

func newClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify X Y Z",
		Short: "Show the zone, bin and partition ID of one point",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			p, err := parsePoint(args)
			if err != nil {
				return err
			}
			req, err := decompose.RequestFromConfig(cliCtx.Config)
			if err != nil {
				return err
			}
			layout, _, err := decompose.NewService(nil, cliCtx.Logger).Layout(req)
			if err != nil {
				return err
			}
			a, err := layout.Classify(p)
			if err != nil {
				return err
			}
			return PrintResult(cmd, classifyReport{
				Point:   [3]float64{p.X, p.Y, p.Z},
				Zone:    a.Zone.String(),
				Bin:     [3]int{a.Bin.I, a.Bin.J, a.Bin.K},
				ID:      a.ID,
				Outside: a.Outside,
			})
		},
	}

	addLayoutFlags(cmd.Flags())
	return cmd
}

func parsePoint(args []string) (r3.Vec, error) {
	var c [3]float64
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r3.Vec{}, errors.InvalidParam("coordinate is not a number").WithDetailf("%c=%q", "XYZ"[i], s)
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}

type classifyReport struct {
	Point   [3]float64                `json:"point"`
	Zone    string                    `json:"zone"`
	Bin     [3]int                    `json:"bin"`
	ID      decomposition.PartitionID `json:"id"`
	Outside bool                      `json:"outside"`
}

func (r classifyReport) String() string {
	s := fmt.Sprintf("%s -> %s bin %s id %d", vec(r.Point), r.Zone, ints(r.Bin), r.ID)
	if r.Outside {
		s += " (outside base grid)"
	}
	return s + "\n"
}
