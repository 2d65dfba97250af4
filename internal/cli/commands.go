package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/adrianmcphee/tetherdb"
	"github.com/adrianmcphee/tetherdb/internal/export"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newWriteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write [json]",
		Short: "Writes a JSON object as a new document and prints its id",
		Long:  WrapString("Writes a JSON object as a new document and prints its id. Without an argument, or with -, the object is read from stdin."),
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().Bool("no-device-id", false, WrapString("do not tag the document with the device id"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		var data []byte
		if len(args) == 0 || args[0] == "-" {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			data = in
		} else {
			data = []byte(args[0])
		}

		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("document must be a JSON object: %w", err)
		}

		var opts []tetherdb.WriteOption
		if noDevice, _ := cmd.Flags().GetBool("no-device-id"); noDevice {
			opts = append(opts, tetherdb.WithoutDeviceID())
		}

		id, err := s.Write(cmd.Context(), doc, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	})
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read [id]",
		Short: "Reads a document by id, or every document with --all",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().Bool("all", false, WrapString("read every document in id order"))
	cmd.Flags().Bool("raw", false, WrapString("print timestamps as epoch seconds"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		req := tetherdb.ReadRequest{}
		if len(args) == 1 {
			req.ID = args[0]
		}
		req.All, _ = cmd.Flags().GetBool("all")
		req.Raw, _ = cmd.Flags().GetBool("raw")

		docs, err := s.Find(cmd.Context(), req)
		if err != nil {
			return err
		}
		for doc, err := range docs {
			if err != nil {
				return err
			}
			if err := printDocuments(cmd.OutOrStdout(), doc); err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a document by id, or every document with --all",
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().Bool("all", false, WrapString("delete every document and recreate the database file"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		req := tetherdb.DeleteRequest{}
		if len(args) == 1 {
			req.ID = args[0]
		}
		req.All, _ = cmd.Flags().GetBool("all")

		n, err := s.Remove(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
		return nil
	})
	return cmd
}

func newFilterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter [key=value]...",
		Short: "Prints documents matching every predicate",
		Long: WrapString(`Prints documents matching every predicate. Nested fields are joined with __,
for example user__name=Al. A value ending in * is a regular expression matched
at the start of the field, for example name=Al*. Values that parse as JSON keep
their type, so age=30 matches the number 30.`),
	}

	cmd.Flags().String("sort", "", WrapString("order results by this field"))
	cmd.Flags().Bool("desc", false, WrapString("sort in descending order"))
	cmd.Flags().Int("limit", -1, WrapString("print at most this many documents"))
	cmd.Flags().Int("offset", 0, WrapString("skip this many matching documents"))
	cmd.Flags().Bool("count", false, WrapString("print the number of matching documents only"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		predicates, err := ParsePredicates(args)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if !flags.Changed("sort") && !flags.Changed("limit") && !flags.Changed("offset") && !flags.Changed("count") {
			docs, err := s.Filter(cmd.Context(), predicates)
			if err != nil {
				return err
			}
			return printDocuments(cmd.OutOrStdout(), docs...)
		}

		q := s.Query()
		for key, value := range predicates {
			q.Where(key, value)
		}

		if count, _ := flags.GetBool("count"); count {
			n, err := q.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}

		if field, _ := flags.GetString("sort"); field != "" {
			desc, _ := flags.GetBool("desc")
			q.SortByField(field, !desc)
		}
		limit, _ := flags.GetInt("limit")
		offset, _ := flags.GetInt("offset")

		docs, err := q.Limit(limit).Offset(offset).All(cmd.Context())
		if err != nil {
			return err
		}
		return printDocuments(cmd.OutOrStdout(), docs...)
	})
	return cmd
}

func newCleanupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Deletes documents older than a number of seconds",
		Long:  WrapString("Deletes documents whose timestamp is at least --seconds old. Without --seconds the configured cleanup_seconds is used."),
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Int("seconds", 0, WrapString("age threshold in seconds, overrides cleanup_seconds"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		var (
			n   int
			err error
		)
		if cmd.Flags().Changed("seconds") {
			seconds, _ := cmd.Flags().GetInt("seconds")
			n, err = s.CleanupAfter(cmd.Context(), seconds)
		} else {
			n, err = s.Cleanup(cmd.Context())
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
		return nil
	})
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Prints the store configuration and document count",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("metrics-file", "", WrapString("also write Prometheus metrics to this file in textfile collector format"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		fmt.Fprintln(cmd.OutOrStdout(), s.String())

		if path, _ := cmd.Flags().GetString("metrics-file"); path != "" {
			if err := prometheus.WriteToTextfile(path, a.metrics.GetRegistry()); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		return nil
	})
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports every document",
		Long:  WrapString("Exports every document as JSON Lines (jsonl), or for PostgreSQL as schema and data (sql), schema only (ddl) or data only (data)."),
		Args:  cobra.NoArgs,
	}
	cmd.Flags().String("format", "jsonl", WrapString("jsonl, sql, ddl or data"))
	cmd.Flags().StringP("output", "o", "", WrapString("write to this file instead of stdout"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) (err error) {
		w := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			w = f
		}

		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")

		var output string
		switch format {
		case "jsonl":
			_, err := export.WriteJSONLines(ctx, s, w)
			return err
		case "sql":
			output, err = export.Export(ctx, s)
		case "ddl":
			output, err = export.ExportDDL(ctx, s)
		case "data":
			output, err = export.ExportData(ctx, s)
		default:
			return fmt.Errorf("unknown format %q", format)
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, output)
		return err
	})
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Imports documents from JSON Lines",
		Long:  WrapString("Writes every JSON object in the file, one per line, as a new document. Without a file, or with -, lines are read from stdin. Ids and timestamps are assigned anew."),
		Args:  cobra.MaximumNArgs(1),
	}
	cmd.Flags().Bool("no-device-id", false, WrapString("do not tag the documents with the device id"))

	cmd.RunE = a.withStore(func(cmd *cobra.Command, args []string, s *tetherdb.Store) error {
		r := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		var opts []tetherdb.WriteOption
		if noDevice, _ := cmd.Flags().GetBool("no-device-id"); noDevice {
			opts = append(opts, tetherdb.WithoutDeviceID())
		}

		ids, err := export.ReadJSONLines(cmd.Context(), s, r, opts...)
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d\n", len(ids))
		return err
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of TetherDB",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TetherDB v%s\n", Version)
		},
	}
}
