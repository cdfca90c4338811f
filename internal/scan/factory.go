package scan

import (
	"context"

	"github.com/JM200322/proyecto-ocr-odoo/internal/config"
	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
	"github.com/JM200322/proyecto-ocr-odoo/internal/ocr"
)

// BuildOCRService assembles the recognition chain from configuration:
// OCR.space engine 2, then engine 3, then Google Vision when credentials
// are present, then local Tesseract when enabled. The cleanup function
// releases the Vision client and must be called on shutdown.
func BuildOCRService(ctx context.Context, cfg *config.Config, observer ocr.AttemptObserver) (ocr.OCRService, func(), error) {
	log := logger.WithComponent("scan-factory")

	plans := []ocr.AttemptPlan{
		{
			Provider: ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{
				APIKey:   cfg.OCRSpaceAPIKey,
				Endpoint: cfg.OCRSpaceURL,
				Engine:   2,
				Timeout:  cfg.OCRTimeout,
			}),
			MaxTries: cfg.OCRMaxRetries,
		},
		{
			Provider: ocr.NewOCRSpaceProvider(ocr.OCRSpaceConfig{
				APIKey:   cfg.OCRSpaceAPIKey,
				Endpoint: cfg.OCRSpaceURL,
				Engine:   3,
				Timeout:  cfg.OCRTimeout,
			}),
			MaxTries: cfg.OCRMaxRetries,
		},
	}

	cleanup := func() {}

	if cfg.HasVisionCredentials() {
		vision, err := ocr.NewVisionProvider(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Google Vision unavailable, continuing without it")
		} else {
			plans = append(plans, ocr.AttemptPlan{Provider: vision, MaxTries: 1})
			cleanup = func() {
				if err := vision.Close(); err != nil {
					log.Warn().Err(err).Msg("Closing Vision client failed")
				}
			}
		}
	}

	if cfg.TesseractEnabled {
		plans = append(plans, ocr.AttemptPlan{Provider: ocr.NewTesseractProvider(), MaxTries: 1})
	}

	engine, err := ocr.NewOrchestrator(ocr.OrchestratorConfig{
		BackoffBase: cfg.OCRBackoffBase,
		Observer:    observer,
	}, plans...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	names := make([]string, len(plans))
	for i, plan := range plans {
		names[i] = plan.Provider.Name()
	}
	log.Info().Strs("providers", names).Msg("Recognition chain ready")

	return engine, cleanup, nil
}
