package main

import (
	"fmt"
	"os"

	"github.com/tkrajina/gpxgo/gpx"
	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:    "export-gpx",
		Aliases: []string{"export"},
		Usage:   "Export the stations of a search as a GPX waypoint file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "location",
				Usage: "Location to search",
			},
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the location",
			},
			&cli.Float64Flag{
				Name:  "long",
				Usage: "Longitude of the location",
			},
			&cli.Float64Flag{
				Name:    "radius",
				Aliases: []string{"r"},
				Usage:   "Search radius in kilometers",
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output GPX file",
				Required: true,
			},
		},
		Action: exportAction,
	}
}

func exportAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	defer env.Close()

	in, err := resolveSearchInput(c, env)
	if err != nil {
		return err
	}

	view, err := env.finder.Search(c.Context, in)
	if err != nil {
		return err
	}

	g := &gpx.GPX{
		Creator:     "tankfinder",
		Name:        "Fuel stations",
		Description: fmt.Sprintf("Stations within %g km of %.4f, %.4f", in.RadiusKm, in.Center.Lat, in.Center.Lng),
	}

	for _, s := range view.Stations {
		desc := fmt.Sprintf("%s %s, %s %s", s.Street, s.HouseNumber, s.PostCode, s.Place)
		if s.HasPrice {
			desc += fmt.Sprintf(" / from %.3f €", s.MinPrice)
		}
		g.Waypoints = append(g.Waypoints, gpx.GPXPoint{
			Point: gpx.Point{
				Latitude:  s.Lat,
				Longitude: s.Lng,
			},
			Name:        s.Name,
			Description: desc,
		})
	}

	data, err := g.ToXml(gpx.ToXmlParams{Indent: true})
	if err != nil {
		return fmt.Errorf("error encoding GPX: %w", err)
	}

	output := c.String("output")
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("error writing GPX file: %w", err)
	}

	fmt.Printf("Wrote %d stations to %s\n", len(view.Stations), output)
	return nil
}
