package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/upload"
)

func newUploadCmd(a *app) *cobra.Command {
	var destination, field string
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if destination == "" {
				destination = a.cfg.Upload.Endpoint
			}
			if field == "" {
				field = a.cfg.Upload.FieldName
			}

			files := make([]upload.File, 0, len(args))
			for _, path := range args {
				f, err := openUpload(path)
				if err != nil {
					for _, opened := range files {
						opened.Preview.Release()
					}
					return err
				}
				files = append(files, f)
			}
			defer func() {
				for _, f := range files {
					f.Preview.Release()
				}
			}()

			results := a.uploadClient().UploadAll(cmd.Context(), destination, files, field, a.cfg.Upload.Concurrency)

			rows := make([][]string, 0, len(results))
			failed := 0
			for i, res := range results {
				state, detail := "ok", res.URL
				if !res.Success {
					state, detail = "failed", res.Message
					failed++
				}
				rows = append(rows, []string{files[i].Name, state, detail})
			}
			printTable(cmd, []string{"file", "status", "url / message"}, rows)

			if failed > 0 {
				return fmt.Errorf("upload: %d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&destination, "destination", "", "upload endpoint (default from config)")
	cmd.Flags().StringVar(&field, "field", "", "multipart field name (default from config)")
	return cmd
}
