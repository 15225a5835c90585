package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

var (
	rulesFormat string
	rulesDump   bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active classification rules",
	Long: `List the rules used to classify console output, one line per form.

--dump prints the built-in rule file as YAML, a starting point for a
localized rule file passed with --patterns.`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rulesCmd.Flags().StringVarP(&rulesFormat, "format", "f", "auto",
		"Output format: auto, jsonl, pretty")
	rulesCmd.Flags().BoolVar(&rulesDump, "dump", false,
		"Print the built-in rule file as YAML")
	_ = rulesCmd.RegisterFlagCompletionFunc("format", completeFormats)

	rootCmd.AddCommand(rulesCmd)
}

// ruleLine is the jsonl form of one rule form.
type ruleLine struct {
	Kind          string   `json:"kind"`
	Form          string   `json:"form"`
	Regex         string   `json:"regex"`
	Multiline     bool     `json:"multiline,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty"`
	Groups        []string `json:"groups,omitempty"`
}

func runRules(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if rulesDump {
		return dumpDefaultRules(out)
	}

	outFormat, err := resolveFormat(rulesFormat, os.Stdout)
	if err != nil {
		return err
	}
	table, err := loadTable()
	if err != nil {
		return err
	}
	return OutputRules(outFormat, table, out)
}

// OutputRules writes every form of every rule in table.
func OutputRules(format string, table *pattern.Table, out io.Writer) error {
	var lines []ruleLine
	for _, r := range table.Rules() {
		for _, f := range r.Forms {
			lines = append(lines, ruleLine{
				Kind:          r.ID(),
				Form:          f.ID,
				Regex:         f.Regexp.String(),
				Multiline:     r.Multiline,
				CaseSensitive: r.CaseSensitive,
				Groups:        r.Groups,
			})
		}
	}

	switch format {
	case "jsonl":
		for _, l := range lines {
			if err := OutputJSON(l, out); err != nil {
				return err
			}
		}
		return nil
	case "pretty":
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tFORM\tGROUPS\tREGEX")
		for _, l := range lines {
			groups := strings.Join(l.Groups, ",")
			if groups == "" {
				groups = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Kind, l.Form, groups, l.Regex)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func dumpDefaultRules(out io.Writer) error {
	rf, err := pattern.DefaultRuleFile()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(rf); err != nil {
		return err
	}
	return enc.Close()
}
