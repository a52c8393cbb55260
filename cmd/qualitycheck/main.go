package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"drug-watch/config"
	"drug-watch/models"
	"drug-watch/services"
	"drug-watch/storage"
)

// CheckConfig braucht nur den S3-Zugang; die Prüfung läuft komplett gegen die
// abgelegten Roh-Artefakte.
type CheckConfig struct {
	S3Key    string `envconfig:"S3_KEY" required:"true"`
	S3Secret string `envconfig:"S3_SECRET" required:"true"`
	S3URL    string `envconfig:"S3_URL" required:"true"`
	S3Region string `envconfig:"S3_REGION" required:"true"`
	S3Bucket string `envconfig:"S3_BUCKET" required:"true"`
}

// main prüft die Datenqualität eines Tageslaufs gegen die Roh-Artefakte im
// Bucket. Optionales Argument: das Laufdatum (YYYY-MM-DD), sonst gestern.
// Exit-Code 1, wenn mindestens eine Prüfung fehlschlägt.
func main() {
	godotenv.Load()

	var cc CheckConfig
	if err := envconfig.Process("", &cc); err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}

	day := time.Now().AddDate(0, 0, -1)
	if len(os.Args) > 1 {
		parsed, err := time.Parse("2006-01-02", os.Args[1])
		if err != nil {
			log.Fatalf("Ungültiges Datum %q, erwartet YYYY-MM-DD", os.Args[1])
		}
		day = parsed
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	cfg := &config.Config{
		S3Key: cc.S3Key, S3Secret: cc.S3Secret,
		S3URL: cc.S3URL, S3Region: cc.S3Region, S3Bucket: cc.S3Bucket,
	}
	client, err := storage.NewS3Client(cfg)
	if err != nil {
		logger.Fatal("S3 client creation failed", zap.Error(err))
	}
	store := storage.NewObjectStore(client, cc.S3Bucket, logger)

	ctx := context.Background()
	var events []models.DrugEvent
	var trials []models.TrialRecord
	for _, source := range []string{"fda", "clinical_trials"} {
		var ds models.Dataset
		found, err := store.ReadJSON(ctx, storage.RawKey(source, day), &ds)
		if err != nil {
			logger.Fatal("Roh-Artefakt konnte nicht gelesen werden",
				zap.String("source", source), zap.Error(err))
		}
		if !found {
			logger.Warn("Kein Roh-Artefakt für Quelle", zap.String("source", source))
			continue
		}
		events = append(events, ds.DrugEvents...)
		trials = append(trials, ds.Trials...)
	}

	normalizer := services.NewFieldNormalizer(logger)
	enricher := services.NewEnrichmentEngine(logger, normalizer)
	events = enricher.TransformDrugEvents(events)
	trials = enricher.TransformTrials(trials)

	validator := services.NewQualityValidator(logger)
	report := validator.Run(&models.Dataset{DrugEvents: events, Trials: trials})

	fmt.Printf("Quality check for %s: %d records, %d checks\n",
		day.Format("2006-01-02"), report.RecordCount, report.CheckCount)
	if report.Passed {
		fmt.Println("PASSED")
		return
	}
	for _, failure := range report.Failures {
		fmt.Printf("FAIL: %s\n", failure)
	}
	os.Exit(1)
}
