package main

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/intake"
)

var (
	intakeFile string
	intakePDF  string
)

var scorecardCmd = &cobra.Command{
	Use:   "scorecard",
	Short: "Score a scorecard request read from a JSON file",
	Long: `Reads a scorecard request (pharmacy name, location and dropdown answers)
and prints the scorecard response. Use --file - to read from stdin.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req intake.ScorecardRequest
		if err := readRequest(cmd, intakeFile, &req); err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		resp := env.Assembler.Scorecard(cmd.Context(), req)
		return emitResponse(cmd.OutOrStdout(), resp, resp.Success, resp.Error, resp.Document)
	},
}

var deepDiveCmd = &cobra.Command{
	Use:   "deepdive",
	Short: "Estimate drug-by-drug loss for a deep-dive request read from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var req intake.DeepDiveRequest
		if err := readRequest(cmd, intakeFile, &req); err != nil {
			return err
		}
		env, err := initEnv(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		resp := env.Assembler.DeepDive(cmd.Context(), req)
		return emitResponse(cmd.OutOrStdout(), resp, resp.Success, resp.Error, resp.Document)
	},
}

func init() {
	for _, c := range []*cobra.Command{scorecardCmd, deepDiveCmd} {
		c.Flags().StringVar(&intakeFile, "file", "", "path to the request JSON, or - for stdin (required)")
		c.Flags().StringVar(&intakePDF, "pdf", "", "write the compiled document to this path when one is returned")
		_ = c.MarkFlagRequired("file")
		rootCmd.AddCommand(c)
	}
}

func readRequest(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open request %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return eris.Wrapf(err, "parse request %s", path)
	}
	return nil
}

// emitResponse prints resp and saves the document when --pdf is set. A
// rejected request is printed and then reported as the command error.
func emitResponse(w io.Writer, resp any, success bool, msg string, doc intake.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return eris.Wrap(err, "write response")
	}
	if !success {
		return eris.Errorf("request rejected: %s", msg)
	}

	if intakePDF != "" && doc.PDFBase64 != nil {
		pdf, err := base64.StdEncoding.DecodeString(*doc.PDFBase64)
		if err != nil {
			return eris.Wrap(err, "decode document")
		}
		if err := os.WriteFile(intakePDF, pdf, 0o644); err != nil {
			return eris.Wrapf(err, "write document %s", intakePDF)
		}
		zap.L().Info("document written", zap.String("path", intakePDF), zap.Int("bytes", len(pdf)))
	}
	return nil
}
