package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/internal/finder"
	"github.com/tankfinder/tankfinder/pkg/api"
)

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "List nearby fuel stations with current prices",
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
				Name:  "fuel",
				Usage: "Fuel grade to highlight (diesel, e5, e10)",
				Value: string(api.FuelAll),
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort key (distance, diesel, e5, e10, name, rating)",
				Value: string(derive.SortDistance),
			},
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Sort in descending order",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Only show stations that are currently open",
			},
		},
		Action: nearbyAction,
	}
}

func nearbyAction(c *cli.Context) error {
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

	printStations(view)
	return nil
}

// resolveSearchInput builds the search from flags: explicit coordinates
// win, then a geocoded location, then the stored last search or the
// configured default.
func resolveSearchInput(c *cli.Context, env *appEnv) (finder.SearchInput, error) {
	var in finder.SearchInput

	lat := c.Float64("lat")
	lng := c.Float64("long")
	loc := c.String("location")

	switch {
	case lat != 0 || lng != 0:
		in.Center = api.Coordinate{Lat: lat, Lng: lng}
	case loc != "":
		place, err := env.geo.First(loc)
		if err != nil {
			return in, err
		}
		fmt.Println("Location found:", place.DisplayName)
		in.Center = place.Location
		in.DisplayName = place.DisplayName
	default:
		center, radius, name := env.finder.DefaultCenter(c.Context)
		in.Center = center
		in.RadiusKm = radius
		in.DisplayName = name
		if name != "" {
			fmt.Println("Searching around last location:", name)
		}
	}

	if c.Float64("radius") > 0 {
		in.RadiusKm = c.Float64("radius")
	}

	in.Filter.Fuel = api.FuelAll
	if fuelStr := c.String("fuel"); fuelStr != "" {
		fuel := api.FuelType(fuelStr)
		if !fuel.Valid() {
			return in, fmt.Errorf("unknown fuel grade: %s", fuelStr)
		}
		in.Filter.Fuel = fuel
	}
	in.Filter.OnlyOpen = c.Bool("open")

	in.Sort.Key = derive.SortDistance
	if sortStr := c.String("sort"); sortStr != "" {
		key := derive.SortKey(sortStr)
		if !key.Valid() {
			return in, fmt.Errorf("unknown sort key: %s", sortStr)
		}
		in.Sort.Key = key
	}
	in.Sort.Descending = c.Bool("desc")

	return in, nil
}

func printStations(view derive.DerivedView) {
	if len(view.Stations) == 0 {
		fmt.Println("No stations found.")
		return
	}

	for i, s := range view.Stations {
		marker := " "
		if s.IsBestForFuel {
			marker = "*"
		}
		fmt.Printf("%d.%s %s (%s)\n", i+1, marker, s.Name, s.Brand)
		fmt.Printf("   %s %s, %s %s\n", s.Street, s.HouseNumber, s.PostCode, s.Place)
		if s.HasDistance {
			fmt.Printf("   Distance: %.2f km\n", s.DistanceKm)
		}
		printPrice("Diesel", s.Diesel)
		printPrice("E5", s.E5)
		printPrice("E10", s.E10)
		if !s.IsOpen {
			fmt.Println("   Currently closed")
		}
		fmt.Println()
	}

	fmt.Printf("Found %d stations, %d open", len(view.Stations), view.Stats.OpenCount)
	if view.Stats.AveragePrice != "0.000" {
		fmt.Printf(", average price %s €", view.Stats.AveragePrice)
	}
	fmt.Println()
}

func printPrice(label string, price float64) {
	if price <= 0 {
		return
	}
	fmt.Printf("   %s: %.3f €\n", label, price)
}
