package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tingo/internal/doc"
	"github.com/roach88/tingo/internal/store"
)

// DataOptions holds flags for commands that write a document.
type DataOptions struct {
	*RootOptions
	Data string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a document",
		Long: `Create a document and print its id.

A non-null "id" in the data becomes the document id; otherwise one is
generated.

Example:
  tingo create User --data '{"name":"ada","age":36}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "document as JSON (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runCreate(opts *DataOptions, modelName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := parseData(opts.Data)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	id, err := s.conn.Create(ctx, modelName, data)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{doc.KeyORMID: id.String()})
	}
	return s.out.Success(id.String())
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <model> <id>",
		Short: "Print the document with an id",
		Long: `Print the document with an id. Exits with code 1 when there is none.

Example:
  tingo find User 0192f1c4-6a70-7c4e-9a53-2b6d1c5e8f00`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runFind(opts *RootOptions, modelName, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	found, err := s.conn.Find(ctx, modelName, id)
	if err != nil {
		return s.out.Fail(err)
	}
	if found == nil {
		return s.out.Fail(fmt.Errorf("%s %s: %w", modelName, id, store.ErrNotFound))
	}
	return s.printDocument(found)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <model> <id>",
		Short: "Set fields on a document",
		Long: `Set the fields in --data on the document with an id and print the
result. Fields not in --data are kept.

Example:
  tingo update User 0192f1c4-6a70-7c4e-9a53-2b6d1c5e8f00 --data '{"age":37}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "fields to set as JSON (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runUpdate(opts *DataOptions, modelName, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := parseData(opts.Data)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	updated, err := s.conn.UpdateAttributes(ctx, modelName, id, data)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.printDocument(updated)
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DataOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upsert <model>",
		Short: "Update a document or create it",
		Long: `Update the document identified by "id" in --data, or create it with
that id when it does not exist. Data without an id is always created.

Example:
  tingo upsert User --data '{"id":"0192f1c4-6a70-7c4e-9a53-2b6d1c5e8f00","age":37}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpsert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "document as JSON (required)")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func runUpsert(opts *DataOptions, modelName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := parseData(opts.Data)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	stored, err := s.conn.UpdateOrCreate(ctx, modelName, data)
	if err != nil {
		return s.out.Fail(err)
	}
	return s.printDocument(stored)
}

// NewDestroyCommand creates the destroy command.
func NewDestroyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "destroy <model> <id>",
		Short: "Remove a document",
		Long: `Remove the document with an id. Removing a missing document is not
an error.

Example:
  tingo destroy User 0192f1c4-6a70-7c4e-9a53-2b6d1c5e8f00`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDestroy(opts *RootOptions, modelName, id string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}
	if err := s.conn.Destroy(ctx, modelName, id); err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(map[string]string{doc.KeyORMID: id})
	}
	return s.out.Success(fmt.Sprintf("✓ destroyed %s %s", modelName, id))
}

// printDocument writes one document in the session's format.
func (s *session) printDocument(d doc.Document) error {
	if s.out.Format == "json" {
		return s.out.Success(d)
	}
	return s.out.Documents([]doc.Document{d})
}
