// Package main is the entry point for the MetaSnap client (msc).
// It wires the wallet provider, session watcher, feed service, snapshot
// cache, and web dashboard together.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/config"
	"metasnap.app/msc/internal/feed"
	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/logger"
	"metasnap.app/msc/internal/pinning"
	"metasnap.app/msc/internal/session"
	"metasnap.app/msc/internal/store"
	"metasnap.app/msc/internal/types"
	"metasnap.app/msc/internal/wallet"
	"metasnap.app/msc/internal/web"
)

func main() {
	log.Println("MetaSnap client starting...")

	cfg := config.Get()

	var contractAddr common.Address
	if cfg.ContractAddress != "" {
		if !common.IsHexAddress(cfg.ContractAddress) {
			log.Fatalf("Invalid contract address %q", cfg.ContractAddress)
		}
		contractAddr = common.HexToAddress(cfg.ContractAddress)
	} else {
		log.Println("Warning: MSC_CONTRACT_ADDRESS not set; feed actions will fail until it is")
	}

	// A missing provider is tolerated; the dashboard starts and every
	// ledger action reports the provider as unavailable.
	var provider session.Provider
	var backend ledger.Backend
	if client, err := wallet.Dial(context.Background(), cfg.RPCURL); err != nil {
		log.Printf("Warning: wallet provider unavailable: %v", err)
	} else {
		provider = client
		backend = client
	}

	watcher := session.New(provider, backend, contractAddr, cfg.FinalityTimeout)

	lg := logger.New(200)
	pinner := pinning.New(cfg.PinningEndpoint, cfg.PinningJWT, cfg.PinningGateway)

	feedSvc := feed.New(func() (feed.Ledger, error) {
		return watcher.Handle()
	}, pinner, lg)
	watcher.OnReset(feedSvc.Reset)

	snapshots, err := store.Open(cfg.CacheFile)
	if err != nil {
		log.Printf("Warning: feed snapshot cache unavailable: %v", err)
	} else {
		defer snapshots.Close()
		log.Println("Feed snapshot cache initialized")

		if posts, chain, err := snapshots.LoadLatest(cfg.ContractAddress); err != nil {
			log.Printf("Warning: failed to load cached feed: %v", err)
		} else if posts != nil {
			log.Printf("Seeded %d cached posts from chain %s", len(posts), chain)
			feedSvc.Seed(posts)
		}

		feedSvc.OnSync(func(posts []types.Post) {
			if err := snapshots.Save(watcher.Chain(), cfg.ContractAddress, posts); err != nil {
				log.Printf("Warning: failed to save feed snapshot: %v", err)
			}
		})
	}

	watcher.Start(context.Background(), cfg.PollInterval)

	port := cfg.Port
	if err := ensurePortAvailable(port); err != nil {
		log.Fatalf("Port %d unavailable: %v", port, err)
	}

	server, err := web.NewServer(watcher, feedSvc, cfg.DocsDir, port, lg)
	if err != nil {
		log.Fatalf("Failed to initialize web server: %v", err)
	}

	serverErrors := server.Start()
	go func() {
		if err := <-serverErrors; err != nil {
			log.Fatalf("Web server exited: %v", err)
		}
	}()
	log.Printf("Dashboard available at http://localhost:%d", port)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
