package cmd

import (
	"github.com/spf13/cobra"

	"billsplit/config"
	"billsplit/mq/mq"
	"billsplit/web"
)

func serverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long:  `This command starts the settlement API. Flags override the environment and .env.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flags := cmd.Flags()

			isDev, _ := flags.GetBool("dev")
			if flags.Changed("port") {
				cfg.Port, _ = flags.GetString("port")
			}
			if flags.Changed("mq") {
				cfg.MqMode, _ = flags.GetString("mq")
			}
			if flags.Changed("store") {
				cfg.Store, _ = flags.GetString("store")
			}
			if flags.Changed("orders-url") {
				cfg.OrdersURL, _ = flags.GetString("orders-url")
			}

			return web.Serve(web.ServiceConfig{
				IsDev:     isDev,
				Port:      cfg.Port,
				MqMode:    mq.Mode(cfg.MqMode),
				Store:     cfg.Store,
				OrdersURL: cfg.OrdersURL,
				Config:    cfg,
			})
		},
	}

	cmd.Flags().Bool("dev", true, "Run in development mode")
	cmd.Flags().String("port", "8080", "Port to run the web server on")
	cmd.Flags().String("mq", "go_chan", "Message queue mode (go_chan, rabbitmq, gcp_pub_sub)")
	cmd.Flags().String("store", "memory", "Settlement store (memory, sqlite, postgres, redis)")
	cmd.Flags().String("orders-url", config.DefaultOrdersURL, "Order history endpoint, {table} is replaced by the table id")

	return cmd
}
