package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit"
	"github.com/goliatone/go-formkit/pkg/api"
	"github.com/goliatone/go-formkit/pkg/form"
	"github.com/goliatone/go-formkit/pkg/notify"
	"github.com/goliatone/go-formkit/pkg/prompt"
	"github.com/goliatone/go-formkit/pkg/upload"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		collection  string
		data        string
		files       []string
		uploadField string
	)
	cmd := &cobra.Command{
		Use:   "create <schema>",
		Short: "Fill a built-in entity form and create the record",
		Long: `Collects values for one of the built-in schemas (account, item, pool,
event, task), validates them, uploads any --file attachments and posts the
record to the collection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := formkit.Schemas()
			if err != nil {
				return err
			}
			s, ok := store.Schema(args[0])
			if !ok {
				return fmt.Errorf("unknown schema %q (have %v)", args[0], store.IDs())
			}
			if collection == "" {
				collection = args[0] + "s"
			}

			values := map[string]any{}
			if data != "" {
				if err := json.Unmarshal([]byte(data), &values); err != nil {
					return fmt.Errorf("--data: %w", err)
				}
			} else {
				values, err = prompt.Fill(ctx, a.driver, s, prompt.WithSkip(uploadField))
				if err != nil {
					return err
				}
			}

			resource := api.NewResource[row](a.client, collection)
			var created row
			opts := []form.Option{
				form.WithValues(values),
				form.WithNotifier(notify.NewLogNotifier(a.logger)),
				form.WithLogger(a.logger),
				form.WithOnSuccess(func(context.Context, form.State) {
					printf(cmd.OutOrStdout(), "Created %s %v\n", args[0], created["id"])
				}),
			}
			if len(files) > 0 {
				tracker, err := a.startUploads(ctx, files)
				if err != nil {
					return err
				}
				opts = append(opts, form.WithTracker(tracker), form.WithUploadField(uploadField))
			}

			c := form.New(s, form.SubmitFunc(func(ctx context.Context, values map[string]any) error {
				rec, err := resource.Create(ctx, values)
				created = rec
				return err
			}), opts...)
			defer c.Close()

			if err := c.Submit(ctx); err != nil {
				return reportFormFailure(cmd, c.Snapshot(), err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection path (default: <schema>s)")
	cmd.Flags().StringVar(&data, "data", "", "JSON object with the values instead of prompting")
	cmd.Flags().StringArrayVar(&files, "file", nil, "file to upload and attach (repeatable)")
	cmd.Flags().StringVar(&uploadField, "upload-field", "images", "field receiving the uploaded URLs")
	return cmd
}

func (a *app) uploadClient() *upload.Client {
	return upload.NewClient(a.cfg.API.BaseURL,
		upload.WithMaxBytes(a.cfg.Upload.MaxBytes),
		upload.WithToken(a.session.Token),
		upload.WithLogger(a.logger),
	)
}

func (a *app) startUploads(ctx context.Context, paths []string) (*upload.Tracker, error) {
	tracker := upload.NewTracker(a.uploadClient(), a.cfg.Upload.Endpoint, a.cfg.Upload.FieldName,
		upload.WithTrackerLogger(a.logger))
	for _, path := range paths {
		file, err := openUpload(path)
		if err != nil {
			tracker.Close()
			return nil, err
		}
		if _, err := tracker.Add(ctx, file); err != nil {
			tracker.Close()
			return nil, err
		}
	}
	return tracker, nil
}

// openUpload opens path; the handle is closed when the upload releases its
// preview.
func openUpload(path string) (upload.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.File{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return upload.File{}, err
	}
	return upload.File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Reader:      f,
		Preview:     upload.PreviewFunc(func() { _ = f.Close() }),
	}, nil
}
