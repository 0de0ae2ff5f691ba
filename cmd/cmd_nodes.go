// cmd_nodes.go - Nodes Command
// Hauptfunktionen: NodesHandler
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/7blacky7/ollama-taesd/nodes"
	"github.com/7blacky7/ollama-taesd/taesd"
)

// NodesHandler - Listet die registrierten Node-Typen mit ihren Eingaben
func NodesHandler(cmd *cobra.Command, _ []string) error {
	// Nur Schemas werden gelesen, daher kein Backend noetig
	registry := nodes.NewRegistry(taesd.NewCache(taesd.Dirs{}, nil))

	var data [][]string
	for _, schema := range registry.Schemas() {
		var inputs []string
		for pair := schema.Required.Oldest(); pair != nil; pair = pair.Next() {
			inputs = append(inputs, fmt.Sprintf("%s:%s", pair.Key, pair.Value.Type))
		}
		data = append(data, []string{
			schema.Name,
			schema.DisplayName,
			strings.Join(inputs, ", "),
			strings.Join(schema.ReturnTypes, ", "),
		})
	}

	table := newTable(cmd.OutOrStdout(), []string{"CLASS", "DISPLAY NAME", "INPUTS", "OUTPUT"})
	table.AppendBulk(data)
	table.Render()

	return nil
}

// newNodesCmd - Erstellt den nodes Command
func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the node types and their inputs",
		Args:  cobra.ExactArgs(0),
		RunE:  NodesHandler,
	}
}
