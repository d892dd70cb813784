package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/server/core"
	"github.com/automoto/blockshot/shared/protocol"
	"github.com/sirupsen/logrus"
)

func main() {
	port := flag.Uint("port", 3536, "Websocket signaling port")
	httpPort := flag.Int("http", 8080, "HTTP status port (0 disables)")
	ttl := flag.Duration("ttl", 90*time.Second, "How long ended rooms stay listed")
	version := flag.String("version", protocol.Version, "Required client protocol version (empty = accept any)")
	flag.Parse()

	logger.Init()
	log := logger.Component("server")

	server := core.NewServer(*version, *ttl)

	if *httpPort > 0 {
		addr := fmt.Sprintf(":%d", *httpPort)
		go func() {
			log.WithField("addr", addr).Info("status API listening")
			if err := http.ListenAndServe(addr, core.NewMux(server.Registry())); err != nil {
				log.WithError(err).Error("status API stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down server")
		server.Stop()
		os.Exit(0)
	}()

	log.WithFields(logrus.Fields{
		"port":    *port,
		"version": *version,
		"ttl":     *ttl,
	}).Info("starting blockshot signaling server")
	if err := server.Start(*port); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
