package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vault713/grinbox/broker"
	"github.com/vault713/grinbox/config"
	"github.com/vault713/grinbox/cryptoutil"
	"github.com/vault713/grinbox/federation"
	"github.com/vault713/grinbox/internal/logger"
	"github.com/vault713/grinbox/internal/metrics"
	"github.com/vault713/grinbox/relay"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay's inbound connection server and broker adapter",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configFile, "config", "", "optional YAML file layered under environment configuration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.GetDefaultLogger()

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return err
	}

	conn, err := broker.Dial(cfg.BrokerURI, cfg.BrokerUsername, cfg.BrokerPassword)
	if err != nil {
		log.Error("could not connect to broker", logger.Error(err), logger.String("broker_uri", cfg.BrokerURI))
		return err
	}
	adapter := broker.NewAdapter(conn, log)
	defer adapter.Close()

	fed := federation.NewClient(cfg.ProtocolUnsecure, cryptoutil.MainnetVersion, log)

	srv, err := relay.NewServer(adapter, fed, cfg.GrinboxDomain, uint16(cfg.GrinboxPort), cryptoutil.MainnetVersion, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("/metrics", metrics.Handler())

	log.Info("relay listening",
		logger.String("bind_address", cfg.BindAddress),
		logger.String("grinbox_domain", cfg.GrinboxDomain),
		logger.Int("grinbox_port", cfg.GrinboxPort),
		logger.Bool("protocol_unsecure", cfg.ProtocolUnsecure),
	)

	return http.ListenAndServe(cfg.BindAddress, mux)
}
