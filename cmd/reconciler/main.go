package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abduss/imagehost/internal/config"
	"github.com/abduss/imagehost/internal/image"
	"github.com/abduss/imagehost/internal/logger"
	"github.com/abduss/imagehost/internal/reconcile"
	"github.com/abduss/imagehost/internal/storage"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "reconciler",
		Short:         "Compare stored image metadata against the object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, cleanup, err := newHandler(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			lambda.StartWithOptions(handler.Handle, lambda.WithContext(cmd.Context()))
			return nil
		},
	}
	root.AddCommand(newRunCommand())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "reconciler:", err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var eventPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one consistency check locally and print the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := readEvent(cmd.InOrStdin(), eventPath)
			if err != nil {
				return err
			}

			handler, cleanup, err := newHandler(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := handler.Handle(cmd.Context(), event)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVar(&eventPath, "event", "", "path to an event JSON file, - for stdin; empty sends {}")
	return cmd
}

func readEvent(stdin io.Reader, path string) (json.RawMessage, error) {
	var data []byte
	var err error
	switch path {
	case "":
		return json.RawMessage(`{}`), nil
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("event is not valid JSON")
	}
	return json.RawMessage(data), nil
}

func newHandler(ctx context.Context) (*reconcile.Handler, func(), error) {
	cfg, err := config.LoadReconciler()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cleanup := func() { _ = log.Sync() }

	store, err := openObjectStore(ctx, cfg)
	if err != nil {
		log.Error("open object store", zap.Error(err))
		cleanup()
		return nil, nil, err
	}

	handler := reconcile.NewHandler(
		reconcile.New(image.NewExtractor(store), log.Named("reconcile")),
		reconcile.DialOpener(cfg.Postgres),
		log,
	)
	return handler, cleanup, nil
}

func openObjectStore(ctx context.Context, cfg config.Config) (image.ObjectStore, error) {
	if cfg.ObjectStore.Backend == config.BackendMinIO {
		client, err := storage.NewMinIOClient(cfg.ObjectStore, cfg.AWS.Region)
		if err != nil {
			return nil, err
		}
		return image.NewMinIOStore(client, cfg.ObjectStore.Bucket), nil
	}

	awsCfg, err := storage.NewAWSConfig(ctx, cfg.AWS.Region, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	return image.NewS3Store(storage.NewS3Client(awsCfg, cfg.ObjectStore), cfg.ObjectStore.Bucket), nil
}
