package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/editgroups/editgroups/internal/services"
)

var toolsFile string

var loadToolsCmd = &cobra.Command{
	Use:   "load-tools",
	Short: "Create or update the tool registry from a YAML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := toolsFile
		if path == "" {
			path = cfg.ToolsFile
		}

		created, updated, err := services.NewToolService(db).LoadTools(path)
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"file":    path,
			"created": created,
			"updated": updated,
		}).Info("Tools loaded")
		return nil
	},
}

func init() {
	loadToolsCmd.Flags().StringVar(&toolsFile, "file", "", "tool definitions (default TOOLS_FILE)")
	rootCmd.AddCommand(loadToolsCmd)
}
