package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zoobzio/fedtracez"
)

var errEmptyInput = errors.New("no trace record given")

var decodeJSON bool

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "print the decoded tree as JSON")
}

var decodeCmd = &cobra.Command{
	Use:   "decode [record]",
	Short: "Decode an ftv1 record and print its tree",
	Long: `Decode reads a trace from the argument, or from stdin when none is given.
Accepted forms: a full GraphQL response with extensions.ftv1, a {"d","t"}
record, or the bare base64 trace.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input []byte
		if len(args) == 1 {
			input = []byte(args[0])
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			input = data
		}

		record, err := parseRecord(input)
		if err != nil {
			return err
		}
		root, err := record.Decode()
		if err != nil {
			return err
		}

		if decodeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fedtracez.Result{Root: root, DurationNs: record.DurationNs})
		}
		renderTree(cmd.OutOrStdout(), root, record.DurationNs)
		return nil
	},
}

// parseRecord accepts a full response, a transport record or bare base64.
func parseRecord(input []byte) (fedtracez.TransportRecord, error) {
	input = bytes.TrimSpace(input)
	if len(input) == 0 {
		return fedtracez.TransportRecord{}, errEmptyInput
	}
	if input[0] != '{' {
		return fedtracez.TransportRecord{Trace: string(input)}, nil
	}

	var envelope struct {
		Extensions map[string]json.RawMessage `json:"extensions"`
	}
	if err := json.Unmarshal(input, &envelope); err != nil {
		return fedtracez.TransportRecord{}, fmt.Errorf("parse record: %w", err)
	}
	if raw, ok := envelope.Extensions[fedtracez.FormatKey]; ok {
		input = raw
	}

	var record fedtracez.TransportRecord
	if err := json.Unmarshal(input, &record); err != nil {
		return fedtracez.TransportRecord{}, fmt.Errorf("parse record: %w", err)
	}
	if record.Trace == "" {
		return fedtracez.TransportRecord{}, errEmptyInput
	}
	return record, nil
}

// renderTree prints one line per node with its offsets and errors.
func renderTree(w io.Writer, root *fedtracez.Node, durationNs uint64) {
	faint := color.New(color.Faint).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s %s\n", bold("operation"), time.Duration(durationNs)) //nolint:gosec // nanoseconds fit in int64

	root.Walk(func(p fedtracez.Path, n *fedtracez.Node) {
		indent := strings.Repeat("  ", len(p))
		if len(p) > 0 {
			seg, _ := p.Last()
			label := seg.String()
			if n.FieldName != "" && n.FieldName != label {
				label += ": " + n.FieldName
			}

			var timing string
			switch {
			case n.Type == "":
				timing = faint("-")
			case n.EndTime == 0:
				timing = yellow(fmt.Sprintf("+%s unfinished", time.Duration(n.StartTime))) //nolint:gosec // nanoseconds fit in int64
			default:
				timing = fmt.Sprintf("+%s %s", time.Duration(n.StartTime), time.Duration(n.EndTime-n.StartTime)) //nolint:gosec // nanoseconds fit in int64
			}

			typ := n.Type
			if n.ParentType != "" {
				typ = n.ParentType + "." + typ
			}
			fmt.Fprintf(w, "%s%s %s %s\n", indent, bold(label), faint(typ), timing)
		}
		for _, e := range n.Errors {
			fmt.Fprintf(w, "%s  %s %s\n", indent, red("error:"), e.Message)
		}
	})
}
