package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abrahaamv/ifinallywill-sub004/internal/output"
	"github.com/abrahaamv/ifinallywill-sub004/internal/store"
)

type indexOptions struct {
	tenant string
	remove []string
}

// chunkInput is the on-disk ingestion format: a JSON array of chunks.
type chunkInput struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [chunks.json]",
		Short: "Ingest chunks into a tenant's knowledge base",
		Long: `Index reads a JSON array of chunks and writes them to the chunk
store, the lexical index and the vector index. Parent chunks (chunks
referenced by a child's parent_id) are stored for expansion but kept
out of the searchable indexes.

Examples:
  ragcore index chunks.json --tenant acme
  ragcore index --tenant acme --remove chunk-42 --remove chunk-43`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(cmd, path, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.tenant, "tenant", "t", "", "Tenant to index into (required)")
	cmd.Flags().StringArrayVar(&opts.remove, "remove", nil, "Chunk ids to delete instead of indexing (repeatable)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, opts indexOptions) error {
	svcs, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.close()

	w := output.New(os.Stdout)

	if len(opts.remove) > 0 {
		if err := svcs.indexer.Delete(cmd.Context(), opts.tenant, opts.remove); err != nil {
			return err
		}
		w.Successf("removed %d chunks from tenant %s", len(opts.remove), opts.tenant)
		return nil
	}

	if path == "" {
		return fmt.Errorf("a chunks file is required unless --remove is used")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var inputs []chunkInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if len(inputs) == 0 {
		w.Warning("no chunks in input file")
		return nil
	}

	chunks := make([]*store.Chunk, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		chunks[i] = &store.Chunk{
			ID:         id,
			TenantID:   opts.tenant,
			DocumentID: in.DocumentID,
			ParentID:   in.ParentID,
			Text:       in.Text,
			Metadata:   in.Metadata,
		}
	}

	if err := svcs.indexer.Index(cmd.Context(), opts.tenant, chunks); err != nil {
		return err
	}

	w.Successf("indexed %d chunks for tenant %s", len(chunks), opts.tenant)
	return nil
}
