package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/config"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/notify"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/store"
)

type storeOptions struct {
	dbURL   string
	migrate bool
}

func (o *storeOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.dbURL, "db", os.Getenv("DATABASE_URL"), "Store URL: postgres://... or sqlite://path (default: $DATABASE_URL)")
}

func (o *storeOptions) registerMigrate(cmd *cobra.Command) {
	o.register(cmd)
	cmd.Flags().BoolVar(&o.migrate, "migrate", true, "Create the schema if it does not exist")
}

func (o *storeOptions) open(cmd *cobra.Command) (ingest.Store, error) {
	if o.dbURL == "" {
		return nil, withCode(exitUsage, fmt.Errorf("--db or DATABASE_URL is required"))
	}
	s, err := store.Open(cmd.Context(), config.DatabaseConfig{URL: o.dbURL, MaxConns: 4, Migrate: o.migrate})
	if err != nil {
		return nil, withCode(exitFailure, err)
	}
	return s, nil
}

type parseOptions struct {
	synonyms string
	preview  int
}

func newParseCmd() *cobra.Command {
	var opts parseOptions

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Show a file's columns, row count and suggested column mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.synonyms, "synonyms", os.Getenv("MAPPING_SYNONYMS_FILE"), "YAML file of extra header synonyms")
	cmd.Flags().IntVar(&opts.preview, "preview", 3, "Number of data rows to print")
	return cmd
}

func runParse(cmd *cobra.Command, path string, opts parseOptions) error {
	file, err := readFile(path)
	if err != nil {
		return withCode(exitUsage, err)
	}
	extra, err := loadSynonyms(opts.synonyms)
	if err != nil {
		return withCode(exitUsage, err)
	}

	table, err := ingest.Parse(file.Data, file.Meta.Extension())
	if err != nil {
		return withCode(exitFailure, err)
	}

	mapping := ingest.NewMapper(extra).Suggest(table.Columns)
	preview := table.Records
	if opts.preview >= 0 && len(preview) > opts.preview {
		preview = preview[:opts.preview]
	}

	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"fileName":        file.Meta.Name,
		"columns":         table.Columns,
		"rowCount":        len(table.Records),
		"preview":         preview,
		"mapping":         mapping,
		"missingRequired": mapping.MissingRequired(),
		"complete":        mapping.Complete(),
	})
}

type processOptions struct {
	storeOptions
	operator    string
	assignments []string
	mappingFile string
	synonyms    string
	maxFileSize int64
	retries     int
	progress    bool
}

func newProcessCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Validate, de-duplicate and import a file into the application store",
		Long: `Runs the full upload pipeline and prints the result as JSON.

The suggested column mapping is used unless --mapping-file or --map is given.
--map edits are applied on top of the suggestion or the mapping file:

  ingest process students.xlsx --map "Preferred Email=email" --map "Notes=skip"

Exit status is 0 when every row was imported, 3 when some rows were invalid,
duplicated or failed, and 1 when the upload was aborted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args[0], opts)
		},
	}

	opts.storeOptions.registerMigrate(cmd)
	cmd.Flags().StringVar(&opts.operator, "operator", envOr("USER", "cli"), "Operator recorded in the upload log")
	cmd.Flags().StringArrayVar(&opts.assignments, "map", nil, `Column assignment "Header=field" (repeatable)`)
	cmd.Flags().StringVar(&opts.mappingFile, "mapping-file", "", `JSON file of {"Header": "field"}`)
	cmd.Flags().StringVar(&opts.synonyms, "synonyms", os.Getenv("MAPPING_SYNONYMS_FILE"), "YAML file of extra header synonyms")
	cmd.Flags().Int64Var(&opts.maxFileSize, "max-size", ingest.DefaultMaxFileSize, "Maximum file size in bytes")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Retries per failed insert")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "Print progress to stderr")
	return cmd
}

func runProcess(cmd *cobra.Command, path string, opts processOptions) error {
	file, err := readFile(path)
	if err != nil {
		return withCode(exitUsage, err)
	}
	extra, err := loadSynonyms(opts.synonyms)
	if err != nil {
		return withCode(exitUsage, err)
	}

	st, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := ingest.NewService(
		ingest.Deps{Applications: st, Audit: st, Notifier: notify.LogNotifier{}},
		ingest.Options{MaxFileSize: opts.maxFileSize, MaxRetries: opts.retries, Synonyms: extra},
	)
	if err != nil {
		return withCode(exitFailure, err)
	}

	mapping, err := resolveMapping(cmd, svc, file, opts)
	if err != nil {
		return err
	}

	var progress ingest.ProgressCallback
	if opts.progress {
		stderr := cmd.ErrOrStderr()
		progress = func(p ingest.UploadProgress) {
			fmt.Fprintf(stderr, "%-22s %5.1f%%  %d/%d\n", p.Label, p.Percent(), p.Completed, p.Total)
		}
	}

	result, err := svc.ProcessUpload(cmd.Context(), file, mapping, opts.operator, progress)
	if result == nil {
		return withCode(exitFailure, err)
	}
	if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
		return withCode(exitFailure, werr)
	}
	if err != nil {
		return withCode(exitFailure, err)
	}

	_ = svc.SendConfirmationEmail(cmd.Context(), result, file.Meta.Name)
	if !result.Success {
		return withCode(exitPartial, fmt.Errorf("upload %s completed with issues", result.UploadID))
	}
	return nil
}

// resolveMapping starts from the mapping file or the suggestion and applies
// the --map edits in order.
func resolveMapping(cmd *cobra.Command, svc *ingest.Service, file ingest.File, opts processOptions) (ingest.ColumnMapping, error) {
	var mapping ingest.ColumnMapping
	if opts.mappingFile != "" {
		data, err := os.ReadFile(opts.mappingFile)
		if err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("read mapping file: %w", err))
		}
		var m map[string]ingest.Field
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, withCode(exitUsage, fmt.Errorf("parse mapping file: %w", err))
		}
		mapping = ingest.ColumnMapping(m).Normalized()
	} else {
		table, err := svc.ParseFile(file)
		if err != nil {
			if result, _ := svc.RecordFailure(cmd.Context(), file, opts.operator, err); result != nil {
				_ = writeJSON(cmd.OutOrStdout(), result)
			}
			return nil, withCode(exitFailure, err)
		}
		mapping = svc.SuggestColumnMapping(table.Columns)
	}

	for _, a := range opts.assignments {
		column, field, err := parseAssignment(a)
		if err != nil {
			return nil, withCode(exitUsage, err)
		}
		if _, ok := mapping[column]; !ok {
			return nil, withCode(exitUsage, fmt.Errorf("--map %q: no column named %q", a, column))
		}
		mapping.Assign(column, field)
	}
	return mapping, nil
}

// parseAssignment splits "Header=field" on the last '=' so headers may
// contain one.
func parseAssignment(s string) (string, ingest.Field, error) {
	i := strings.LastIndex(s, "=")
	if i <= 0 {
		return "", "", fmt.Errorf("--map %q: want Header=field", s)
	}
	column := strings.TrimSpace(s[:i])
	field := ingest.Field(strings.TrimSpace(s[i+1:]))
	if !field.Valid() {
		return "", "", fmt.Errorf("--map %q: unknown field %q", s, field)
	}
	return column, field, nil
}

type logsOptions struct {
	storeOptions
	limit int
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs [UPLOAD_ID]",
		Short: "List recent upload logs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 1 {
				log, err := st.GetUploadLog(cmd.Context(), args[0])
				if err != nil {
					return withCode(exitFailure, err)
				}
				return writeJSON(cmd.OutOrStdout(), log)
			}

			logs, err := st.ListUploadLogs(cmd.Context(), opts.limit)
			if err != nil {
				return withCode(exitFailure, err)
			}
			return writeJSON(cmd.OutOrStdout(), logs)
		},
	}

	opts.storeOptions.registerMigrate(cmd)
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Number of logs to list")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var opts storeOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the application and upload log tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.migrate = true
			st, err := opts.open(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return st.Close()
		},
	}

	opts.register(cmd)
	return cmd
}

func readFile(path string) (ingest.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.File{}, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return ingest.File{
		Meta: ingest.FileMeta{
			Name: name,
			Size: int64(len(data)),
			Type: mime.TypeByExtension(filepath.Ext(name)),
		},
		Data: data,
	}, nil
}

func loadSynonyms(path string) (map[string]ingest.Field, error) {
	if path == "" {
		return nil, nil
	}
	return ingest.LoadSynonyms(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
