package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	formkit "github.com/goliatone/go-formkit"
	"github.com/goliatone/go-formkit/pkg/openapi"
)

func newSchemasCmd(a *app) *cobra.Command {
	var specPath, operationID string
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List built-in schemas or derive one from an OpenAPI operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if specPath != "" {
				src := openapi.ParseSource(specPath)
				options := []openapi.Option{openapi.WithRemote(nil, a.cfg.API.Timeout)}
				if operationID == "" {
					ops, err := formkit.OperationsFromOpenAPI(cmd.Context(), src, options...)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(ops))
					for _, id := range ops.IDs() {
						op := ops[id]
						rows = append(rows, []string{id, op.Method, op.Path, strconv.Itoa(len(op.RequestBody.Properties))})
					}
					printTable(cmd, []string{"operation", "method", "path", "body fields"}, rows)
					return nil
				}
				def, err := formkit.DefinitionFromOpenAPI(cmd.Context(), src, operationID, options...)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(def); err != nil {
					return fmt.Errorf("schemas: encode: %w", err)
				}
				return enc.Close()
			}

			store, err := formkit.Schemas()
			if err != nil {
				return err
			}
			var rows [][]string
			for _, id := range store.IDs() {
				s, _ := store.Schema(id)
				rows = append(rows, []string{id, s.Title(), strconv.Itoa(len(s.Fields()))})
			}
			printTable(cmd, []string{"id", "title", "fields"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&specPath, "openapi", "", "OpenAPI document (path or URL) to derive a schema from")
	cmd.Flags().StringVar(&operationID, "operation", "", "operationId whose request body becomes the schema (lists operations when empty)")
	return cmd
}
