package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pos/internal/app"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/inventory"
	"github.com/noah-isme/toko-pos/internal/obs"
)

type seedItem struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Maker        string          `json:"maker"`
	Supplier     string          `json:"supplier"`
	Color        string          `json:"color"`
	Barcode      *string         `json:"barcode"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	MinThreshold *int            `json:"minThreshold"`
	SalePercent  int             `json:"salePercent"`
	BOGO         bool            `json:"bogo"`
}

func main() {
	file := flag.String("file", "", "JSON array of items to seed; built-in sample when empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	cfg.LowStockAlerts = false
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	items := sampleItems()
	if *file != "" {
		raw, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *file).Msg("read seed file")
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			logger.Fatal().Err(err).Str("file", *file).Msg("decode seed file")
		}
	}

	ctx := context.Background()
	deps, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	created, skipped := 0, 0
	for _, it := range items {
		threshold := 5
		if it.MinThreshold != nil {
			threshold = *it.MinThreshold
		}
		adj, err := deps.Inventory.AddItem(ctx, inventory.NewItem{
			ItemDetails: inventory.ItemDetails{
				Name:         it.Name,
				Category:     it.Category,
				Maker:        it.Maker,
				Supplier:     it.Supplier,
				Color:        it.Color,
				Barcode:      it.Barcode,
				Price:        it.Price,
				MinThreshold: threshold,
				SalePercent:  it.SalePercent,
				BOGO:         it.BOGO,
			},
			Quantity: it.Quantity,
		})
		switch {
		case err == nil:
			created++
			logger.Info().Int64("item_id", adj.Item.ID).Str("name", adj.Item.Name).Msg("seeded item")
		case errors.Is(err, inventory.ErrDuplicate):
			skipped++
		default:
			logger.Fatal().Err(err).Str("name", it.Name).Msg("seed item")
		}
	}
	logger.Info().Int("created", created).Int("skipped", skipped).Msg("seeding completed")
}

func sampleItems() []seedItem {
	barcode := func(v string) *string { return &v }
	return []seedItem{
		{Name: "Ceramic Mug", Category: "kitchen", Maker: "Loka", Supplier: "CV Sinar", Color: "White", Barcode: barcode("8991001000017"), Price: decimal.RequireFromString("45000"), Quantity: 24},
		{Name: "Cotton Socks", Category: "apparel", Maker: "Kaki", Supplier: "PT Tekstil", Color: "Black", Barcode: barcode("8991001000024"), Price: decimal.RequireFromString("18000"), Quantity: 60, BOGO: true},
		{Name: "Notebook A5", Category: "stationery", Maker: "Kertas", Supplier: "CV Sinar", Barcode: barcode("8991001000031"), Price: decimal.RequireFromString("12500"), Quantity: 40, SalePercent: 20},
		{Name: "Tote Bag", Category: "apparel", Maker: "Loka", Supplier: "PT Tekstil", Color: "Natural", Price: decimal.RequireFromString("35000"), Quantity: 6},
		{Name: "Scented Candle", Category: "home", Maker: "Wangi", Supplier: "UD Harum", Color: "Amber", Barcode: barcode("8991001000048"), Price: decimal.RequireFromString("52000"), Quantity: 3},
	}
}
