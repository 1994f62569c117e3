// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/codecache/codecache"
)

const (
	Version = "1.0.0"

	shutdownTimeout = 5 * time.Second
)

// main serves the admin API over an in-memory durable state seeded from
// genesis. It has no VM factory, so it answers fingerprint and module
// queries but never builds VMs.
func main() {
	p, err := getParams()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if p.version {
		fmt.Printf("%s@%s\n", codecache.Name, Version)
		os.Exit(0)
	}

	if err := run(p); err != nil {
		fmt.Printf("serve returned an error: %s\n", err)
		os.Exit(1)
	}
}

func run(p *params) error {
	factory := &codecache.Factory{Natives: codecache.StaticNatives(p.natives)}
	env, err := factory.New()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if err := env.Initialize(memdb.New(), p.genesis, p.config, registry); err != nil {
		return err
	}
	defer env.Shutdown()

	lvl, err := env.Config().Level()
	if p.logLevel != "" {
		lvl, err = log.LvlFromString(p.logLevel)
	}
	if err != nil {
		return err
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	handlers, err := env.CreateHandlers()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	for ext, h := range handlers {
		mux.Handle("/ext/"+codecache.Name+ext, h)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    net.JoinHostPort(p.httpHost, strconv.Itoa(int(p.httpPort))),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving admin API", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
