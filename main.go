package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"drug-watch/config"
	"drug-watch/models"
	"drug-watch/providers"
	"drug-watch/providers/clinicaltrials"
	"drug-watch/providers/fda"
	"drug-watch/services"
	"drug-watch/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	recordsExtractedCounter *prometheus.CounterVec
	pipelineRunsCounter     *prometheus.CounterVec
)

func init() {
	recordsExtractedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_extracted_total",
			Help: "Total number of records extracted, per source.",
		},
		[]string{"source"},
	)
	pipelineRunsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs, per final status.",
		},
		[]string{"status"},
	)
	prometheus.MustRegister(recordsExtractedCounter, pipelineRunsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to pipeline database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.PipelineRun{})

	// Setup Extractors
	enabledSourceNames := strings.Split(cfg.EnabledSources, ",")
	var extractors []providers.Extractor
	for _, name := range enabledSourceNames {
		switch strings.TrimSpace(name) {
		case "fda":
			extractors = append(extractors, fda.NewExtractor(cfg, logging))
		case "clinical_trials":
			extractors = append(extractors, clinicaltrials.NewExtractor(cfg, logging))
		default:
			logging.Warn("Unknown source in config", zap.String("source_name", name))
		}
	}
	if len(extractors) == 0 {
		logging.Fatal("No valid sources enabled. Check ENABLED_SOURCES in .env")
	}
	logging.Info("Active sources loaded", zap.Strings("sources", enabledSourceNames))

	// Setup Storage und Pipeline
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	store := storage.NewObjectStore(s3Client, cfg.S3Bucket, logging)
	pipeline := services.NewPipelineService(cfg, db, store, logging, extractors)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	setupRunRoutes(router, pipeline, db, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled pipeline job...")
		executeRun(pipeline, time.Now().AddDate(0, 0, -1), logging)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// executeRun fährt einen Tageslauf und pflegt die Prometheus-Zähler, egal wie
// der Lauf ausgeht.
func executeRun(pipeline *services.PipelineService, day time.Time, log *zap.Logger) {
	run, err := pipeline.RunDaily(context.Background(), day)
	pipelineRunsCounter.WithLabelValues(run.Status).Inc()
	recordsExtractedCounter.WithLabelValues("fda").Add(float64(run.FDARecords))
	recordsExtractedCounter.WithLabelValues("clinical_trials").Add(float64(run.TrialRecords))
	if err != nil {
		log.Error("Pipeline run failed", zap.String("run_date", run.RunDate), zap.Error(err))
		return
	}
	log.Info("Pipeline run completed",
		zap.String("run_date", run.RunDate),
		zap.Int("enriched_records", run.EnrichedRecords))
}

func setupRunRoutes(router *gin.Engine, pipeline *services.PipelineService, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/runs")

	// POST - Lauf für ein Datum asynchron anstoßen (default: gestern)
	rg.POST("/trigger", func(c *gin.Context) {
		day := time.Now().AddDate(0, 0, -1)
		if raw := c.Query("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
				return
			}
			day = parsed
		}

		go executeRun(pipeline, day, log)
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline run triggered.", "run_date": day.Format("2006-01-02")})
	})

	// GET - Lauf-Historie, neueste zuerst
	rg.GET("/", func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		var runs []models.PipelineRun
		if err := db.Order("created_at desc").Limit(limit).Find(&runs).Error; err != nil {
			log.Error("Database query for runs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})

	// GET - Einzelner Lauf
	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var run models.PipelineRun
		if err := db.First(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			log.Error("DB error fetching run", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, run)
	})
}
