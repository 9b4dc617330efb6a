package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// QueryOptions holds flags for commands that select documents.
type QueryOptions struct {
	*RootOptions
	Filter string
	Where  string
}

// CountResult is the JSON payload of count and destroy-all.
type CountResult struct {
	Model string `json:"model"`
	Count int64  `json:"count"`
}

// NewAllCommand creates the all command.
func NewAllCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "all <model>",
		Short: "Print the documents selected by a filter",
		Long: `Print the documents selected by an ORM filter, one per line.

The filter takes where, order, limit, skip/offset and fields.

Examples:
  tingo all User
  tingo all User --filter '{"where":{"age":{"between":[30,40]}},"order":"age DESC","limit":10}'
  tingo all User --filter '{"where":{"name":{"inq":["ada","grace"]}},"fields":["name"]}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "ORM filter as JSON")

	return cmd
}

func runAll(opts *QueryOptions, modelName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := parseFilter(opts.Filter)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	docs, err := s.conn.All(ctx, modelName, f)
	if err != nil {
		return s.out.Fail(err)
	}
	s.out.VerboseLog("%d document(s)", len(docs))
	return s.out.Documents(docs)
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count documents matching a where clause",
		Long: `Count the documents matching a where clause (all of them without one).

Example:
  tingo count User --where '{"age":{"gt":30}}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "where clause as JSON")

	return cmd
}

func runCount(opts *QueryOptions, modelName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	where, err := parseWhere(opts.Where)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	n, err := s.conn.Count(ctx, modelName, where)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(CountResult{Model: modelName, Count: n})
	}
	return s.out.Success(n)
}

// NewDestroyAllCommand creates the destroy-all command.
func NewDestroyAllCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "destroy-all <model>",
		Short: "Remove documents matching a where clause",
		Long: `Remove the documents matching a where clause and print how many were
removed. Without --where every document of the model is removed.

Examples:
  tingo destroy-all User --where '{"age":{"lt":18}}'
  tingo destroy-all Session`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroyAll(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Where, "where", "", "where clause as JSON")

	return cmd
}

func runDestroyAll(opts *QueryOptions, modelName string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	where, err := parseWhere(opts.Where)
	if err != nil {
		return s.out.Fail(err)
	}
	if err := s.model(ctx, modelName); err != nil {
		return s.out.Fail(err)
	}

	n, err := s.conn.DestroyAll(ctx, modelName, where)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		return s.out.Success(CountResult{Model: modelName, Count: n})
	}
	return s.out.Success(fmt.Sprintf("✓ destroyed %d %s document(s)", n, modelName))
}

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections in the database",
		Long: `List the collections in the database, in byte order. A collection exists
once a document was written to it or an index was declared on it.

Example:
  tingo collections --db ./app.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(rootOpts, cmd)
		},
	}

	return cmd
}

func runCollections(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	names, err := s.conn.Store().Collections(ctx)
	if err != nil {
		return s.out.Fail(err)
	}

	if s.out.Format == "json" {
		if names == nil {
			names = []string{}
		}
		return s.out.Success(names)
	}
	for _, name := range names {
		fmt.Fprintln(s.out.Writer, name)
	}
	return nil
}
