package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/pkg/api"
)

func bestCommand() *cli.Command {
	return &cli.Command{
		Name:    "best-prices",
		Aliases: []string{"best"},
		Usage:   "Show the cheapest station per fuel grade",
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
		},
		Action: bestAction,
	}
}

func bestAction(c *cli.Context) error {
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

	printBest("Diesel", view.Best.Diesel)
	printBest("E5", view.Best.E5)
	printBest("E10", view.Best.E10)

	if overall := view.Best.Overall; overall != nil {
		fmt.Printf("\nBest deal: %s at %s (%.3f €)\n",
			fuelLabel(overall.Fuel), overall.StationName, overall.Price)
	} else {
		fmt.Println("No price data available.")
	}
	return nil
}

func printBest(label string, rec *derive.BestPriceRecord) {
	if rec == nil {
		fmt.Printf("%-7s no price data\n", label+":")
		return
	}
	fmt.Printf("%-7s %.3f € at %s\n", label+":", rec.Price, rec.StationName)
}

func fuelLabel(f api.FuelType) string {
	switch f {
	case api.FuelDiesel:
		return "Diesel"
	case api.FuelE5:
		return "E5"
	case api.FuelE10:
		return "E10"
	}
	return string(f)
}
