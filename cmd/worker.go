/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wanderlog/apiserver/config"
	"github.com/wanderlog/apiserver/internal/logging"
	"github.com/wanderlog/apiserver/internal/mq"
	"github.com/wanderlog/apiserver/internal/services"
	"github.com/wanderlog/apiserver/internal/storage"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deletes images released by deleted stories",
	Long: `Consumes image release messages published by the server when
IMAGE_RELEASE_MODE=queue and deletes the images from object storage. Usage:

	wanderlog worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logging.New(cfg.Log.Level, cfg.Log.Format)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer objects.Close()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("worker requires MQ_BACKEND")
		}
		defer broker.Close()

		images := services.NewImageService(objects)
		log.WithField("channel", cfg.MQ.ImageReleaseChannel).Info("worker consuming image releases")

		err = mq.ConsumeImageReleases(ctx, broker, cfg.MQ.ImageReleaseChannel, func(ctx context.Context, req mq.ImageRelease) error {
			entry := log.WithFields(logrus.Fields{
				"image_url": req.ImageURL,
				"story_id":  req.StoryID,
			})
			if err := images.Release(ctx, req.ImageURL); err != nil {
				entry.WithError(err).Warn("failed to release image")
				return err
			}
			entry.Debug("image released")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
