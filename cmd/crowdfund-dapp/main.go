package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdfund.io/crowdfund-dapp/internal/aws"
	"crowdfund.io/crowdfund-dapp/internal/chains"
	"crowdfund.io/crowdfund-dapp/internal/config"
	"crowdfund.io/crowdfund-dapp/internal/http"
	"crowdfund.io/crowdfund-dapp/internal/media"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/internal/wallet/walletconnect"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

func main() {
	log.Infof("Starting app")
	startApp()
}

func startApp() {
	defer func() {
		if i := recover(); i != nil {
			log.Fatal(errors.ErrorfAndReport("%v", i))
		}
	}()
	cfg := config.Read()
	log.SetLevel(cfg.LogLevel)
	if cfg.SentryDSN != "" {
		if err := errors.NewSentryReporter(cfg.SentryDSN); err != nil {
			log.Warnf("sentry reporter disabled: %v", err)
		}
	}
	errors.NewLarkReporter(cfg.LarkAlarmWebhook, time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var clients *aws.Clients
	if cfg.Aws.ImageBucket != "" || cfg.Contract.AddressSSMParam != "" {
		c, err := aws.Init(ctx, cfg.Aws.ImageBucket, cfg.Aws.Region)
		if err != nil {
			log.Fatal(err)
		}
		clients = c
	}
	var params config.ParameterReader
	if clients != nil {
		params = clients
	}
	contractAddress, err := cfg.ResolveContractAddress(ctx, params)
	if err != nil {
		log.Fatal(err)
	}

	chain, err := cfg.Blockchain()
	if err != nil {
		log.Fatal(err)
	}
	provider, closeProvider, err := newProvider(ctx, cfg, chain)
	if err != nil {
		log.Fatal(err)
	}
	defer closeProvider()

	feed := wallet.NewFeed(32, wallet.LogNotifier{})
	manager := wallet.NewManager(provider, chain,
		wallet.WithNotifier(feed),
		wallet.WithRateLimit(cfg.Contract.RPCRateLimit),
	)
	if _, err := manager.Restore(ctx); err != nil {
		log.Warnf("restore wallet session: %v", err)
	}

	opts := []http.Option{http.WithFeed(feed), http.WithTimeout(cfg.HTTP.Timeout)}
	if clients != nil && cfg.Aws.ImageBucket != "" {
		opts = append(opts, http.WithImages(media.NewUploader(clients, "projects")))
	}
	server := http.NewServer(manager, contractAddress, opts...)
	if err := server.Run(ctx, cfg.HTTP.Listen); err != nil {
		log.Fatal(err)
	}
}

// newProvider builds the configured wallet. No provider at all is valid: connecting
// then reports that a wallet must be installed.
func newProvider(ctx context.Context, cfg *config.Configuration, chain *chains.Blockchain) (wallet.Provider, func(), error) {
	noop := func() {}
	switch cfg.Wallet.Provider {
	case config.ProviderKey:
		if cfg.Wallet.PrivateKey == "" {
			log.Warn("no wallet private key configured")
			return nil, noop, nil
		}
		p, err := wallet.KeyProviderFromHex(cfg.Wallet.PrivateKey, wallet.WithActiveChain(chain))
		if err != nil {
			return nil, noop, err
		}
		log.Infof("using key wallet %s", p.Address().Hex())
		return p, noop, nil
	case config.ProviderRPC:
		p, err := wallet.DialRPCProvider(ctx, cfg.Wallet.RPCURL)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	case config.ProviderWalletConnect:
		wc := cfg.Wallet.WalletConnect
		opts := []walletconnect.Option{
			walletconnect.WithBridgeURL(wc.BridgeURL),
			walletconnect.WithChainID(chain.ID),
			walletconnect.WithMeta(walletconnect.ClientMeta{
				Name:        wc.Name,
				Description: wc.Description,
				URL:         wc.URL,
				Icons:       wc.Icons,
			}),
		}
		if wc.QRCodePath != "" {
			opts = append(opts, walletconnect.WithDisplay(walletconnect.QRCodeFile(wc.QRCodePath)))
		}
		p, err := walletconnect.New(opts...)
		if err != nil {
			return nil, noop, err
		}
		return p, func() { _ = p.Close() }, nil
	}
	log.Warnf("unknown wallet provider %q, running without a wallet", cfg.Wallet.Provider)
	return nil, noop, nil
}
