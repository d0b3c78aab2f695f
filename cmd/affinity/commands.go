package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/affinity"
	"github.com/cactuscomunidadcreativa/rowi-affinity/internal/types"
)

type rootOptions struct {
	calibrationDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "affinity",
		Short: "Score how well two psychometric profiles fit in a relational context",
		Long: `affinity computes the 0-135 affinity composite of two profiles offline,
using the same engine as the HTTP service.

Calibration overrides are read from <context>.yaml files in --calibration-dir.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.calibrationDir, "calibration-dir", "", "directory with <context>.yaml calibration overrides")

	root.AddCommand(newScoreCmd(opts), newContextsCmd(opts), newBiasCmd())
	return root
}

func (o *rootOptions) engine() (*affinity.Engine, error) {
	if o.calibrationDir == "" {
		return affinity.NewEngine(nil), nil
	}
	overrides, err := affinity.NewCalibrationStore(o.calibrationDir).LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	return affinity.NewEngine(overrides), nil
}

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var (
		file     string
		context  string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a pair described in a JSON file",
		Example: `  affinity score -f pair.json
  affinity score -f pair.json --context liderazgo --detailed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer in.Close()

			var req types.ScoreRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decode pair: %w", err)
			}
			if context != "" {
				req.Context = context
			}

			engine, err := opts.engine()
			if err != nil {
				return err
			}

			bias := affinity.NewHeuristicLearner().Learn(req.Messages)
			res, details, err := engine.ScoreDetailed(affinity.Input{
				Subject:     req.Subject.Bundle(),
				Counterpart: req.Counterpart.Bundle(),
				Context:     req.Context,
				Closeness:   req.Closeness,
				Bias:        bias.Factor,
			})
			if err != nil {
				return err
			}

			resp := types.ScoreResponse{Result: res, Bias: bias}
			if detailed || req.Detailed {
				resp.Details = &details
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "pair JSON file, - for stdin")
	cmd.Flags().StringVarP(&context, "context", "c", "", "override the context in the file")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include intermediate terms")
	return cmd
}

func newContextsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "contexts",
		Short: "Print the weight table of every context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := opts.engine()
			if err != nil {
				return err
			}

			profiles := make([]affinity.ContextProfile, 0, len(affinity.Contexts))
			for _, c := range affinity.Contexts {
				profiles = append(profiles, engine.Profile(c))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profiles)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CONTEXT\tGROWTH\tCOLLAB\tUNDERSTAND\tBIAS CAP\tCALIBRATION\tBONUS\tBONUS TALENTS")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\n",
					p.Context, p.Weights.Growth, p.Weights.Collaboration, p.Weights.Understanding,
					p.BiasCap, p.Calibration, p.SharedStrength.Factor, strings.Join(p.SharedStrength.Talents, "+"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print full profiles as JSON")
	return cmd
}

func newBiasCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "bias",
		Short: "Learn the preference bias of a message history, one message per line, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer in.Close()

			var messages []string
			scanner := bufio.NewScanner(in)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					messages = append(messages, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read messages: %w", err)
			}

			return writeJSON(cmd.OutOrStdout(), affinity.NewHeuristicLearner().Learn(messages))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "messages file, - for stdin")
	return cmd
}
