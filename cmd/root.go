package cmd

import (
	"github.com/spf13/cobra"

	"narou2epub/config"
)

type globalArguments struct {
	configPath string
	logLevel   string
	renderer   string
}

var globalArgs globalArguments

var RootCmd = &cobra.Command{
	Use:   "narou2epub <ncode>",
	Short: "Convert a syosetu.com novel into a vertical-writing EPUB",
	Long: `Download the chapters of a syosetu.com ("小説家になろう") work, proofread them
for vertical Japanese typesetting and package them as an EPUB for Kindle.

Downloaded chapters are cached, so later runs only fetch what is missing.`,
	Example: `  narou2epub n0498fr
  narou2epub n0498fr --start 10 --end 20 --image-size small
  narou2epub --clear-cache n0498fr
  narou2epub --clear-cache`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDownload,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&globalArgs.configPath, "config", config.DefaultPath, "config file path")
	RootCmd.PersistentFlags().StringVar(&globalArgs.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&globalArgs.renderer, "renderer", "", "page renderer (http, chrome)")
}
