package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/delivery"
	"github.com/radiusdt/game-ads/internal/middleware"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

// logHost renders ads as log lines.
type logHost struct {
	logger *zap.Logger
}

func (h *logHost) Ready() bool { return true }

func (h *logHost) ShowBanner(ad models.Ad) {
	h.logger.Info("banner", zap.String("ad_id", ad.ID), zap.String("title", ad.Title), zap.String("image", ad.ImageURL))
}

func (h *logHost) ShowInterstitial(ad models.Ad) {
	h.logger.Info("interstitial shown", zap.String("ad_id", ad.ID), zap.String("title", ad.Title), zap.String("image", ad.ImageURL))
}

func (h *logHost) HideInterstitial() {
	h.logger.Info("interstitial hidden")
}

func (h *logHost) Open(url string) {
	h.logger.Info("open", zap.String("url", url))
}

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := delivery.NewAPIClient(cfg.APIURL, cfg.RequestTimeout, logger)
	client := delivery.NewClient(api, &logHost{logger: logger}, delivery.OptionsFromConfig(cfg), logger)

	// Commands on stdin: g = game over, b = click banner,
	// i = click interstitial, x = close interstitial.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			switch strings.TrimSpace(scanner.Text()) {
			case "g":
				client.GameOver()
			case "b":
				client.ClickBanner()
			case "i":
				client.ClickInterstitial()
			case "x":
				client.CloseInterstitial()
			case "":
			default:
				logger.Warn("unknown command, use g, b, i or x")
			}
		}
	}()

	logger.Info("delivery client starting", zap.String("api", cfg.APIURL))
	if err := client.Run(ctx); err != nil {
		logger.Fatal("delivery client failed", zap.Error(err))
	}
	logger.Info("delivery client stopped")
}
