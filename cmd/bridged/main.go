package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/holiman/uint256"

	"shadowbridge/config"
	"shadowbridge/core"
	"shadowbridge/core/types"
	"shadowbridge/observability"
	"shadowbridge/observability/logging"
	"shadowbridge/observability/otel"
	"shadowbridge/rpc"
	"shadowbridge/state"
	"shadowbridge/storage"
)

var genesisMarkerKey = []byte("meta/genesis-applied")

func main() {
	configPath := flag.String("config", "./bridge.toml", "path to the TOML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "bridged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var fileOpts *logging.FileOptions
	if cfg.Log.File != "" {
		fileOpts = &logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}
	}
	log := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, fileOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error("telemetry shutdown", "err", err)
			}
		}()
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st := state.NewManager()
	if err := st.Load(db); err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	owner, err := types.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		return fmt.Errorf("owner address: %w", err)
	}
	admin := owner
	if cfg.GroupAdminAddress != "" {
		if admin, err = types.ParseAddress(cfg.GroupAdminAddress); err != nil {
			return fmt.Errorf("group admin address: %w", err)
		}
	}

	registry, err := core.NewStaticRegistry(cfg.Registry.Coin2WanRatio, cfg.Registry.DefaultTxFeeRatio, cfg.Registry.Precise)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	for groupHex, ratio := range cfg.Registry.GroupFeeRatios {
		group, err := types.ParseAddress(groupHex)
		if err != nil {
			return fmt.Errorf("group fee ratio key %q: %w", groupHex, err)
		}
		registry.SetGroupFeeRatio(group, ratio)
	}

	c, err := core.New(st, core.Params{
		Owner:             owner,
		GroupAdmin:        admin,
		TokenName:         cfg.Token.Name,
		TokenSymbol:       cfg.Token.Symbol,
		TokenDecimals:     cfg.Token.Decimals,
		LockedTimeSeconds: cfg.HTLC.LockedTimeSeconds,
		RevokeFeeRatio:    cfg.HTLC.RevokeFeeRatio,
		Registry:          registry,
	})
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}
	c.AttachEmitter(observability.Metrics())
	observability.RegisterCoreGauges(observability.GaugeSources{
		TotalSupply: func() float64 { return uintGauge(c.Token().TotalSupply()) },
		TotalQuota:  func() float64 { return uintGauge(c.Quota().TotalQuota()) },
		Halted: func() float64 {
			if c.IsHalted() {
				return 1
			}
			return 0
		},
	})

	if err := applyGenesis(db, st, cfg.Genesis); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}

	server := rpc.NewServer(c, log, rpc.Options{
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("rpc listening", "addr", cfg.RPCAddress)
		serveErr <- httpServer.ListenAndServe()
	}()

	flushTicker := time.NewTicker(30 * time.Second)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown", "err", err)
			}
			if err := st.Flush(db); err != nil {
				return fmt.Errorf("final flush: %w", err)
			}
			return nil
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve rpc: %w", err)
			}
			return nil
		case <-flushTicker.C:
			if err := st.Flush(db); err != nil {
				log.Error("periodic flush", "err", err)
			}
		}
	}
}

// uintGauge approximates a 256-bit amount as the nearest float64 for gauge
// export.
func uintGauge(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}

// applyGenesis credits configured native balances exactly once per data
// directory.
func applyGenesis(db storage.Database, st *state.Manager, genesis map[string]string) error {
	if len(genesis) == 0 {
		return nil
	}
	applied, err := db.Has(genesisMarkerKey)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	for addrHex, amount := range genesis {
		addr, err := types.ParseAddress(addrHex)
		if err != nil {
			return fmt.Errorf("genesis address %q: %w", addrHex, err)
		}
		value, err := uint256.FromDecimal(amount)
		if err != nil {
			return fmt.Errorf("genesis amount for %s: %w", addrHex, err)
		}
		if err := st.NativeCredit(addr, value); err != nil {
			return err
		}
	}
	st.DiscardJournal()
	if err := st.Flush(db); err != nil {
		return err
	}
	return db.Put(genesisMarkerKey, []byte{0x01})
}
