package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/graphql-lsp/internal/cli/config"
	"github.com/conduit-lang/graphql-lsp/internal/cli/ui"
	"github.com/conduit-lang/graphql-lsp/internal/definition"
	"github.com/conduit-lang/graphql-lsp/internal/diagnostics"
	"github.com/conduit-lang/graphql-lsp/internal/schema"
	"github.com/conduit-lang/graphql-lsp/internal/tooling"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate GraphQL documents against the project schema",
		Long: `Validate GraphQL documents the way the language server does.

Without arguments every document under the project root is checked, using the
extensions and excludes of the project configuration. Schema files are not
checked as documents. The command exits non-zero when any error is found.`,
		RunE: runCheck,
	}

	cmd.Flags().String("root", "", "Project root (default: nearest directory with a .graphqlrc)")
	cmd.Flags().Bool("summary", false, "Print a per-file summary table")

	return cmd
}

// checkResult is the outcome of checking one file
type checkResult struct {
	path        string
	diagnostics []tooling.Diagnostic
	err         error
}

func (r checkResult) count(severity tooling.DiagnosticSeverity) int {
	n := 0
	for _, d := range r.diagnostics {
		if d.Severity == severity {
			n++
		}
	}
	return n
}

func runCheck(cmd *cobra.Command, args []string) error {
	rootFlag, _ := cmd.Flags().GetString("root")
	summary, _ := cmd.Flags().GetBool("summary")
	nc := noColor(cmd)
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	root, err := checkRoot(rootFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprint(errOut, ui.ConfigError(err.Error(), nc))
		return err
	}

	provider := schema.NewProvider(root, cfg.Schema, zap.NewNop())
	sch, err := provider.Schema(ctx)
	switch {
	case errors.Is(err, schema.ErrNoSchema):
		fmt.Fprint(errOut, ui.Warning("no schema configured, only syntax is checked", nc))
	case err != nil:
		fmt.Fprint(errOut, ui.SchemaError(err.Error(), nc))
		return err
	}

	files, missing := checkFiles(ctx, cmd, args, root, cfg, provider, nc)
	if files == nil && missing == 0 {
		return nil
	}

	results := analyzeFiles(ctx, files, sch, diagnostics.NewEngine(cfg.Validation.IgnoredRules), cfg.Scan.Concurrency)

	errorCount, warningCount, failedFiles := 0, 0, 0
	for _, result := range results {
		display := displayPath(root, result.path)
		if result.err != nil {
			ui.WriteError(errOut, ui.ErrorOptions{Problem: result.err.Error(), NoColor: nc})
			failedFiles++
			continue
		}
		ui.WriteDiagnostics(out, display, result.diagnostics, nc)
		errorCount += result.count(tooling.DiagnosticSeverityError)
		warningCount += result.count(tooling.DiagnosticSeverityWarning)
		if result.count(tooling.DiagnosticSeverityError) > 0 {
			failedFiles++
		}
	}

	if summary && len(results) > 0 {
		fmt.Fprintln(out)
		writeSummary(out, root, results, nc)
	}

	if errorCount > 0 || missing > 0 || failedFiles > 0 {
		return fmt.Errorf("%d errors in %d of %d files", errorCount, failedFiles+missing, len(results)+missing)
	}

	ui.WriteSuccess(out, fmt.Sprintf("%d files checked, %d warnings", len(results), warningCount), nc)
	return nil
}

// checkRoot resolves the project root from the flag or the working directory
func checkRoot(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if root, err := config.FindRoot("."); err == nil {
		return root, nil
	}
	return filepath.Abs(".")
}

// checkFiles lists the documents to check. Named files that do not exist are
// reported with suggestions and counted as missing.
func checkFiles(ctx context.Context, cmd *cobra.Command, args []string, root string, cfg *config.Config, provider *schema.Provider, nc bool) ([]string, int) {
	if len(args) > 0 {
		var (
			files   []string
			missing int
		)
		for _, arg := range args {
			path, err := filepath.Abs(arg)
			if err == nil {
				if _, err = os.Stat(path); err == nil {
					files = append(files, path)
					continue
				}
			}
			fmt.Fprint(cmd.ErrOrStderr(), ui.FileNotFoundError(arg, siblingSuggestions(arg), nc))
			missing++
		}
		return files, missing
	}

	resolver := definition.NewResolver(definition.Config{
		Root:        root,
		Extensions:  cfg.Extensions,
		Excludes:    cfg.Excludes,
		Concurrency: cfg.Scan.Concurrency,
	}, nil, nil, nil)
	all, err := resolver.Files(ctx)
	if err != nil {
		ui.WriteError(cmd.ErrOrStderr(), ui.ErrorOptions{Problem: err.Error(), NoColor: nc})
		return nil, 1
	}

	schemaFiles := make(map[string]bool)
	if paths, err := provider.Files(); err == nil {
		for _, path := range paths {
			schemaFiles[path] = true
		}
	}

	files := make([]string, 0, len(all))
	for _, path := range all {
		if !schemaFiles[path] {
			files = append(files, path)
		}
	}
	if len(files) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("no documents found under "+root, nc))
		return nil, 0
	}
	return files, 0
}

// analyzeFiles runs the engine over files concurrently, keeping input order
func analyzeFiles(ctx context.Context, files []string, sch *ast.Schema, engine *diagnostics.Engine, concurrency int) []checkResult {
	if concurrency <= 0 {
		concurrency = definition.DefaultConcurrency
	}

	results := make([]checkResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			results[i].path = path
			if err := gctx.Err(); err != nil {
				results[i].err = err
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].diagnostics = engine.Analyze(string(content), sch).Diagnostics
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func writeSummary(w io.Writer, root string, results []checkResult, nc bool) {
	table := ui.NewTable(w, []string{"File", "Errors", "Warnings"}, nc)
	for _, result := range results {
		table.AddRow(
			displayPath(root, result.path),
			strconv.Itoa(result.count(tooling.DiagnosticSeverityError)),
			strconv.Itoa(result.count(tooling.DiagnosticSeverityWarning)),
		)
	}
	table.Render()
}

// siblingSuggestions proposes files next to a missing path with a close name
func siblingSuggestions(path string) []string {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	suggestions := ui.FindSimilar(filepath.Base(path), names, nil)
	for i, name := range suggestions {
		suggestions[i] = filepath.Join(filepath.Dir(path), name)
	}
	return suggestions
}

func displayPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return path
}
