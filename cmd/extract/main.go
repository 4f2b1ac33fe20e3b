package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/gdkp/gdkp-backend/internal/extraction"
	"github.com/gdkp/gdkp-backend/internal/media"
	product "github.com/gdkp/gdkp-backend/internal/products"
	"github.com/gdkp/gdkp-backend/pkg/config"
	"github.com/gdkp/gdkp-backend/pkg/db"
	pkgerrors "github.com/gdkp/gdkp-backend/pkg/errors"
	"github.com/gdkp/gdkp-backend/pkg/imaging"
	"github.com/gdkp/gdkp-backend/pkg/logger"
	"github.com/gdkp/gdkp-backend/pkg/migrate"
	"github.com/gdkp/gdkp-backend/pkg/ocrspace"
	"github.com/gdkp/gdkp-backend/pkg/types"
	"github.com/gdkp/gdkp-backend/pkg/vision"
)

type output struct {
	Extraction *extraction.Result   `json:"extraction,omitempty"`
	Saved      *product.SaveResult  `json:"saved,omitempty"`
	Error      *pkgerrors.ErrorDump `json:"error,omitempty"`
}

func main() {
	imagePath := flag.String("image", "", "path to a receipt or price tag image")
	modeFlag := flag.String("mode", "vision", "recognition mode: vision|ocr")
	save := flag.Bool("save", false, "save the extracted records to the catalog")
	storeName := flag.String("store", "", "store name to attach when saving")
	storeAddress := flag.String("address", "", "store address to attach when saving")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "extract", Output: os.Stderr, Format: "console"})
	_ = godotenv.Load()

	if *imagePath == "" {
		exit("missing -image")
	}
	mode, err := extraction.ParseMode(*modeFlag)
	if err != nil {
		exit(err.Error())
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "extract",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
		Format:      "console",
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logg.WithFields(ctx, map[string]any{"image": *imagePath, "mode": string(mode)})

	data, err := os.ReadFile(*imagePath)
	requireResource(ctx, logg, "image file", err)
	img, err := media.FromBytes(*imagePath, "file", data, cfg.Media.MaxUploadBytes())
	if err != nil {
		report(output{Error: dump(err)}, 1)
	}

	visionClient, err := vision.New(ctx, cfg.Vision)
	requireResource(ctx, logg, "vision client", err)

	svc, err := extraction.NewService(visionClient, ocrspace.NewClient(ocrspace.Options{
		APIKey:   cfg.OCR.APIKey,
		Endpoint: cfg.OCR.Endpoint,
		Language: cfg.OCR.Language,
	}), nil, logg, extraction.Options{
		Compression: imaging.Options{
			MaxDimension: cfg.Media.ImageMaxSide,
			MaxBytes:     cfg.Media.ImageMaxBytes,
			Quality:      cfg.Media.ImageQuality,
		},
		DefaultCurrency: cfg.Media.DefaultCurrency,
		MaxImageBytes:   cfg.Media.MaxUploadBytes(),
	})
	requireResource(ctx, logg, "extraction service", err)

	result, err := svc.Extract(ctx, *img, mode)
	if err != nil {
		report(output{Error: dump(err)}, 1)
	}
	out := output{Extraction: result}

	if *save {
		saved, err := saveRecords(ctx, cfg, logg, product.SaveInput{
			Records:  result.Records,
			Location: &types.Location{Name: *storeName, Address: *storeAddress},
		})
		if err != nil {
			out.Error = dump(err)
			report(out, 1)
		}
		out.Saved = saved
	}

	report(out, 0)
}

func saveRecords(ctx context.Context, cfg *config.Config, logg *logger.Logger, input product.SaveInput) (*product.SaveResult, error) {
	dbClient, err := db.New(ctx, cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
	if err != nil {
		return nil, err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return nil, err
	}

	svc, err := product.NewService(product.NewRepository(dbClient.DB()), dbClient, nil, logg, product.Options{
		DefaultCurrency: cfg.Media.DefaultCurrency,
		ResultLimit:     cfg.Catalog.ResultLimit,
	})
	if err != nil {
		return nil, err
	}
	return svc.Save(ctx, input)
}

func dump(err error) *pkgerrors.ErrorDump {
	d := pkgerrors.Dump(err)
	return &d
}

func report(out output, code int) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
