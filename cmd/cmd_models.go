// cmd_models.go - Models und Show Commands
// Hauptfunktionen: ModelsHandler, ShowHandler
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/ollama-taesd/envconfig"
	"github.com/7blacky7/ollama-taesd/taesd"
)

// newTable - Tabelle im Stil der uebrigen Listen-Ausgaben
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	return table
}

// modelDirs - Verzeichnisse aus --models oder TAESD_MODELS
func modelDirs(cmd *cobra.Command) taesd.Dirs {
	if dirs, _ := cmd.Flags().GetStringSlice("models"); len(dirs) > 0 {
		return taesd.Dirs(dirs)
	}
	return taesd.Dirs(envconfig.Models())
}

// ModelsHandler - Listet die bekannten Varianten und ihre Dateien
func ModelsHandler(cmd *cobra.Command, args []string) error {
	dirs := modelDirs(cmd)

	var data [][]string
	for _, name := range taesd.KnownModels() {
		if len(args) > 0 && !strings.HasPrefix(name, strings.ToLower(args[0])) {
			continue
		}

		s, _ := taesd.LookupScalars(name)
		encoder, decoder := "-", "-"
		if p, ok := taesd.Resolve(taesd.Basename(name, taesd.RoleEncoder), taesd.Extensions, dirs); ok {
			encoder = p
		}
		if p, ok := taesd.Resolve(taesd.Basename(name, taesd.RoleDecoder), taesd.Extensions, dirs); ok {
			decoder = p
		}

		data = append(data, []string{name, fmt.Sprint(s.Scale), fmt.Sprint(s.Shift), encoder, decoder})
	}

	table := newTable(cmd.OutOrStdout(), []string{"NAME", "SCALE", "SHIFT", "ENCODER", "DECODER"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// ShowHandler - Zeigt den zusammengesetzten State-Dict eines Modells
func ShowHandler(cmd *cobra.Command, args []string) error {
	model := args[0]

	sd, paths, err := taesd.LoadStateDict(modelDirs(cmd), model, taesd.Extensions)
	if err != nil {
		return err
	}

	scale, _ := sd.Scalar(taesd.KeyScale)
	shift, _ := sd.Scalar(taesd.KeyShift)

	out := cmd.OutOrStdout()
	info := newTable(out, []string{"MODEL", model})
	info.AppendBulk([][]string{
		{"encoder", paths.Encoder},
		{"decoder", paths.Decoder},
		{taesd.KeyScale, fmt.Sprint(scale)},
		{taesd.KeyShift, fmt.Sprint(shift)},
		{"tensors", fmt.Sprint(len(sd))},
	})
	info.Render()

	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return nil
	}

	fmt.Fprintln(out)
	var data [][]string
	for _, key := range sd.Keys() {
		data = append(data, []string{key, fmt.Sprint([]int(sd[key].Shape()))})
	}

	table := newTable(out, []string{"TENSOR", "SHAPE"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newModelsCmd - Erstellt den models Command
func newModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:     "models [PREFIX]",
		Aliases: []string{"ls", "list"},
		Short:   "List TAESD variants and their weight files",
		Args:    cobra.MaximumNArgs(1),
		RunE:    ModelsHandler,
	}
	modelsCmd.Flags().StringSlice("models", nil, "vae_approx directories (default TAESD_MODELS)")
	return modelsCmd
}

// newShowCmd - Erstellt den show Command
func newShowCmd() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show MODEL",
		Short: "Show the assembled state dict of a TAESD variant",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}
	showCmd.Flags().StringSlice("models", nil, "vae_approx directories (default TAESD_MODELS)")
	showCmd.Flags().BoolP("verbose", "v", false, "List every tensor with its shape")
	return showCmd
}
