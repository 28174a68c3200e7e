package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"tentatek/internal/back"
	"tentatek/internal/config"
	"tentatek/internal/web"
)

func serve(b *back.Back, conf *config.Config) error {
	done := make(chan struct{})
	signaled := make(chan os.Signal, 1)
	signal.Notify(signaled, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	server := web.NewServer(b, conf)
	go server.Serve(&wg, done)

	sig := <-signaled
	log.Printf("received signal %d", sig)
	close(done)
	wg.Wait()

	log.Print("shutdown complete")

	return nil
}
