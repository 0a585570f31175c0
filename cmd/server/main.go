package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Alexander-D-Karpov/blockfs/internal/config"
	"github.com/Alexander-D-Karpov/blockfs/internal/disk"
	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
	httpserver "github.com/Alexander-D-Karpov/blockfs/internal/http"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
	"github.com/Alexander-D-Karpov/blockfs/internal/server"
)

const dialTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	logLevel := cfg.LogLevel.String()

	root := &cobra.Command{
		Use:           "blockfs",
		Short:         "Simulated disk and filesystem servers",
		Long:          "Serve a simulated cylinder/sector disk over TCP, and a hierarchical filesystem stored on it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cfg.LogLevel = config.ParseLogLevel(logLevel)
			logger.SetLevel(cfg.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "debug|info|warn|error")

	root.AddCommand(newDiskCmd(cfg), newFSCmd(cfg), newBenchCmd(cfg))
	return root
}

func newDiskCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disk",
		Short: "Run the block device server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.ValidateDisk(); err != nil {
				return err
			}
			return runDisk(cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.DiskListen, "listen", cfg.DiskListen, "address to accept block device clients on")
	fl.StringVar(&cfg.BackingPath, "file", cfg.BackingPath, "backing file for the disk image")
	fl.IntVar(&cfg.Cylinders, "cylinders", cfg.Cylinders, "number of cylinders")
	fl.IntVar(&cfg.Sectors, "sectors", cfg.Sectors, "sectors per cylinder")
	fl.DurationVar(&cfg.TrackDelay, "track-delay", cfg.TrackDelay, "simulated seek time per cylinder travelled")
	fl.BoolVar(&cfg.MmapReads, "mmap", cfg.MmapReads, "serve reads from a memory map of the backing file")
	blockSizeFlag(fl, cfg)
	return cmd
}

func newFSCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Run the filesystem server on top of a block device server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.ValidateFS(); err != nil {
				return err
			}
			return runFS(cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.FSListen, "listen", cfg.FSListen, "address to accept filesystem clients on")
	fl.StringVar(&cfg.DiskAddr, "disk", cfg.DiskAddr, "block device server to store data on")
	fl.IntVar(&cfg.MaxEntries, "max-entries", cfg.MaxEntries, "size of the entry table, root included")
	fl.IntVar(&cfg.MaxNameLen, "max-name", cfg.MaxNameLen, "longest accepted file or directory name")
	fl.BoolVar(&cfg.EnableHTTP, "http", cfg.EnableHTTP, "serve the read-only HTTP inspector")
	fl.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP inspector address")
	blockSizeFlag(fl, cfg)
	return cmd
}

func newBenchCmd(cfg *config.Config) *cobra.Command {
	var (
		ops  int
		seed uint64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a random read/write workload against a block device server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if ops <= 0 {
				return fmt.Errorf("ops must be > 0, got %d", ops)
			}
			return runBench(cfg, ops, seed)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.DiskAddr, "disk", cfg.DiskAddr, "block device server address")
	fl.IntVar(&ops, "ops", 10000, "number of operations")
	fl.Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	blockSizeFlag(fl, cfg)
	return cmd
}

// blockSizeFlag is shared by every command: the disk protocol does not carry
// the block size, so both ends must be configured alike.
func blockSizeFlag(fl *pflag.FlagSet, cfg *config.Config) {
	fl.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "bytes per block")
}

func runDisk(cfg *config.Config) error {
	if dir := filepath.Dir(cfg.BackingPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create backing directory: %w", err)
		}
	}

	dev, err := disk.NewDevice(disk.DeviceConfig{
		Path: cfg.BackingPath,
		Geometry: domain.Geometry{
			Cylinders: cfg.Cylinders,
			Sectors:   cfg.Sectors,
			BlockSize: cfg.BlockSize,
		},
		TrackDelay: cfg.TrackDelay,
		MmapReads:  cfg.MmapReads,
	})
	if err != nil {
		return err
	}
	defer dev.Close()

	logger.Info("Backing file: %s", cfg.BackingPath)
	logger.Info("Track delay: %s (mmap reads: %v)", cfg.TrackDelay, cfg.MmapReads)

	srv := server.NewDiskServer(dev)
	if err := srv.Start(cfg.DiskListen); err != nil {
		return err
	}

	waitForSignal()
	srv.Stop()
	return nil
}

func runFS(cfg *config.Config) error {
	cl, err := disk.Dial(cfg.DiskAddr, cfg.BlockSize, dialTimeout)
	if err != nil {
		return err
	}
	defer cl.Close()
	logger.Info("Connected to disk server %s: %s", cfg.DiskAddr, cl.Geometry())

	filesystem := fs.New(cl, fs.Options{
		MaxEntries: cfg.MaxEntries,
		MaxNameLen: cfg.MaxNameLen,
	})

	srv := server.NewFSServer(filesystem)
	if err := srv.Start(cfg.FSListen); err != nil {
		return err
	}

	var httpSrv *httpserver.Inspector
	if cfg.EnableHTTP {
		httpSrv = httpserver.NewInspector(filesystem)
		if err := httpSrv.Start(cfg.HTTPAddr); err != nil {
			logger.Warn("Failed to start HTTP inspector: %v", err)
			httpSrv = nil
		}
	}

	waitForSignal()
	if httpSrv != nil {
		httpSrv.Stop()
	}
	srv.Stop()
	return nil
}

func runBench(cfg *config.Config, ops int, seed uint64) error {
	cl, err := disk.Dial(cfg.DiskAddr, cfg.BlockSize, dialTimeout)
	if err != nil {
		return err
	}
	defer cl.Close()

	logger.Info("Geometry: %s (seed=%d, ops=%d)", cl.Geometry(), seed, ops)
	res, err := disk.RunBench(cl, ops, seed, func(done, total int) {
		logger.Info("Progress: %d/%d", done, total)
	})
	if err != nil {
		return err
	}

	fmt.Println(res)
	return nil
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")
}
