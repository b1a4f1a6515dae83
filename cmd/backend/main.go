// Package main is the entry point for the MetaSnap backend (msc-backend).
// It exposes the stored-value endpoints over a locally held signing key and
// the file upload stub.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"metasnap.app/msc/internal/api"
	"metasnap.app/msc/internal/config"
	"metasnap.app/msc/internal/ledger"
	"metasnap.app/msc/internal/logger"
	"metasnap.app/msc/internal/wallet"
)

func main() {
	log.Println("MetaSnap backend starting...")

	cfg := config.Get()

	if !common.IsHexAddress(cfg.StorageContractAddress) {
		log.Fatalf("Invalid or missing storage contract address %q (MSC_STORAGE_CONTRACT_ADDRESS)", cfg.StorageContractAddress)
	}

	signer, err := wallet.DialKeyed(context.Background(), cfg.BackendRPCURL, cfg.BackendPrivateKey)
	if err != nil {
		log.Fatalf("Failed to initialize signer: %v", err)
	}
	defer signer.Close()
	log.Printf("Signing as %s", signer.From().Hex())

	storage := ledger.NewStorage(signer,
		common.HexToAddress(cfg.StorageContractAddress),
		signer.From(),
		cfg.FinalityTimeout)

	lg := logger.New(200)
	service := api.NewService(storage, lg, cfg.UploadDir)

	mux := http.NewServeMux()
	service.Register(mux)

	addr := fmt.Sprintf(":%d", cfg.BackendPort)
	errCh := make(chan error, 1)
	go func() {
		errCh <- http.ListenAndServe(addr, api.CORS(mux))
	}()
	log.Printf("Backend listening on http://localhost:%d", cfg.BackendPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Backend server exited: %v", err)
	case <-sigChan:
		log.Println("Shutting down...")
	}
}
