package main

import (
	"fmt"

	"github.com/ethpandaops/datas/pkg/config"
	"github.com/ethpandaops/datas/pkg/upload"
	"github.com/spf13/cobra"
)

var uploadResultDir string

var uploadResultsCmd = &cobra.Command{
	Use:   "upload-results",
	Short: "Upload a report directory to remote storage",
	Long:  `Upload a local report directory to S3-compatible storage using the config file settings.`,
	RunE:  runUploadResults,
}

func init() {
	rootCmd.AddCommand(uploadResultsCmd)
	uploadResultsCmd.Flags().StringVar(&uploadResultDir, "result-dir", "",
		"Path to the report directory to upload")

	_ = uploadResultsCmd.MarkFlagRequired("result-dir")
}

func runUploadResults(cmd *cobra.Command, args []string) error {
	if len(cfgFiles) == 0 {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFiles...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.Upload.S3.Enabled {
		return fmt.Errorf("S3 upload is not enabled in config")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	uploader, err := upload.NewS3Uploader(log, &cfg.Upload.S3)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}

	ctx := cmd.Context()

	log.WithField("dir", uploadResultDir).Info("Uploading report")

	location, err := uploader.Upload(ctx, uploadResultDir)
	if err != nil {
		return fmt.Errorf("uploading report: %w", err)
	}

	log.WithField("location", location).Info("Upload completed successfully")

	return nil
}
