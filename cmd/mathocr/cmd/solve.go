package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/mathocr/internal/config"
	"github.com/MeKo-Tech/mathocr/internal/pipeline"
	"github.com/spf13/cobra"
)

// solveCmd runs the pipeline on local image files.
var solveCmd = &cobra.Command{
	Use:   "solve [image|dir...]",
	Short: "Detect and evaluate the expression in image files",
	Long: `Run the pipeline on one or more image files and print the results.

Examples:
  mathocr solve photo.jpg
  mathocr solve photos/ --recursive --exclude 'draft_*' --format json -j 4
  mathocr solve photo.jpg --format text --backend static --debug=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" {
			return fmt.Errorf("unsupported format: %s (want text or json)", format)
		}
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		paths, err := pipeline.DiscoverImages(args, pipeline.DiscoverOptions{
			Recursive: recursive,
			Include:   include,
			Exclude:   exclude,
		})
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no images found")
		}
		return runSolve(cmd.Context(), cfg, paths, format, concurrency, cmd.OutOrStdout())
	},
}

func runSolve(ctx context.Context, cfg *config.Config, paths []string, format string, concurrency int, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p, pool, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	results, err := p.ProcessFiles(ctx, paths, concurrency)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		pipeline.Observe(pipeline.SourceCLI, r.Err)
		if r.Err != nil {
			failed++
		}
	}

	if format == "json" {
		err = writeJSONResults(out, results)
	} else {
		err = writeTextResults(out, results)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

type jsonFileResult struct {
	File   string           `json:"archivo"`
	Result *pipeline.Result `json:"resultado,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func writeJSONResults(w io.Writer, results []pipeline.FileResult) error {
	out := make([]jsonFileResult, len(results))
	for i, r := range results {
		out[i] = jsonFileResult{File: r.Path, Result: r.Result}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(out) == 1 {
		return enc.Encode(out[0])
	}
	return enc.Encode(out)
}

func writeTextResults(w io.Writer, results []pipeline.FileResult) error {
	var sb strings.Builder
	for _, r := range results {
		if len(results) > 1 {
			fmt.Fprintf(&sb, "%s\n", r.Path)
		}
		if r.Err != nil {
			fmt.Fprintf(&sb, "  error: %v\n", r.Err)
			continue
		}
		fmt.Fprintf(&sb, "  expresion: %s\n", r.Result.Expression)
		fmt.Fprintf(&sb, "  resultado: %s\n", r.Result.Value.String())
		fmt.Fprintf(&sb, "  mensaje:   %s\n", r.Result.Message)
		if r.Result.AnnotatedURL != "" {
			fmt.Fprintf(&sb, "  anotada:   %s\n", r.Result.AnnotatedURL)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringP("format", "f", "json", "output format (json, text)")
	solveCmd.Flags().IntP("concurrency", "j", 1, "number of images processed in parallel")
	solveCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	solveCmd.Flags().StringSlice("include", nil, "only process file names matching these globs")
	solveCmd.Flags().StringSlice("exclude", nil, "skip file names matching these globs")
}
