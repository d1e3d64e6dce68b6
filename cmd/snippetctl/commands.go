package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/snippet-store/internal/model"
	"github.com/sakif/snippet-store/internal/service"
)

// Output records use the same field names as the HTTP API.

type snippetRecord struct {
	SnippetName string     `json:"snippet_name"`
	Language    string     `json:"language"`
	CodeContent string     `json:"code_content"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type summaryRecord struct {
	SnippetName string    `json:"snippet_name"`
	Language    string    `json:"language"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type versionRecord struct {
	VersionID   string    `json:"version_id"`
	CodeContent string    `json:"code_content"`
	CreatedAt   time.Time `json:"created_at"`
}

func summaryRecords(in []model.SnippetSummary) []summaryRecord {
	out := make([]summaryRecord, 0, len(in))
	for _, s := range in {
		out = append(out, summaryRecord{SnippetName: s.Name, Language: s.Language, UpdatedAt: s.UpdatedAt})
	}
	return out
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	var language, file string

	cmd := &cobra.Command{
		Use:   "put NAME",
		Short: "Create or update a snippet, reading content from --file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(svc *service.SnippetService) error {
				view, err := svc.Upsert(cmd.Context(), opts.owner, args[0], language, content)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), snippetRecord{
					SnippetName: view.Name,
					Language:    view.Language,
					CodeContent: view.Content,
					UpdatedAt:   view.UpdatedAt,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "language label stored with the snippet")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from this file instead of stdin")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	var versionID string

	cmd := &cobra.Command{
		Use:   "get NAME",
		Short: "Show a snippet with its latest content, or a pinned version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(svc *service.SnippetService) error {
				view, err := svc.Get(cmd.Context(), opts.owner, args[0], versionID)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), snippetRecord{
					SnippetName: view.Name,
					Language:    view.Language,
					CodeContent: view.Content,
					CreatedAt:   &view.CreatedAt,
					UpdatedAt:   view.UpdatedAt,
				})
			})
		},
	}

	cmd.Flags().StringVar(&versionID, "version", "", "version id to show instead of the latest")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the owner's snippets (metadata only)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(svc *service.SnippetService) error {
				summaries, err := svc.List(cmd.Context(), opts.owner)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), summaryRecords(summaries))
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history NAME",
		Short: "List every version of a snippet, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(svc *service.SnippetService) error {
				history, err := svc.ListVersions(cmd.Context(), opts.owner, args[0])
				if err != nil {
					return err
				}
				out := make([]versionRecord, 0, len(history))
				for _, v := range history {
					out = append(out, versionRecord{VersionID: v.ID, CodeContent: v.Content, CreatedAt: v.CreatedAt})
				}
				return opts.render(cmd.OutOrStdout(), out)
			})
		},
	}
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find snippets whose latest content contains KEYWORD (case-insensitive)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(svc *service.SnippetService) error {
				summaries, err := svc.Search(cmd.Context(), opts.owner, args[0])
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), summaryRecords(summaries))
			})
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm NAME",
		Aliases: []string{"delete"},
		Short:   "Delete a snippet and its whole history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(svc *service.SnippetService) error {
				if err := svc.Delete(cmd.Context(), opts.owner, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.ErrOrStderr(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}

func readContent(stdin io.Reader, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, service.MaxContentLength+1))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}
