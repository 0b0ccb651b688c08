package cmd

import (
	"github.com/spf13/cobra"
	"story-video-worker/config"
	server2 "story-video-worker/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and generation workers",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
