package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/fraudwatch/fraudwatch/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l string   ledger JSON-RPC endpoint
//	-k string   fraud registry contract address
//	-w string   comma-separated governance addresses
//	-i int      poll interval, seconds
//	-o int      pending transaction timeout, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-l", "-k", "-w", "-i", "-o", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LedgerRPCEndpoint, "l", config.LedgerRPCEndpoint, "ledger JSON-RPC endpoint")
	fs.StringVar(&config.LedgerContract, "k", config.LedgerContract, "fraud registry contract address")

	governance := fs.String("w", strings.Join(config.GovernanceAddresses, ","), "governance addresses (comma-separated)")
	pollInterval := fs.Int("i", int(config.PollInterval.Seconds()), "poll_interval (in seconds)")
	pendingTimeout := fs.Int("o", int(config.PendingTxTimeout.Minutes()), "pending_tx_timeout (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *governance != "" {
		config.GovernanceAddresses = strings.Split(*governance, ",")
	}
	config.PollInterval = time.Duration(*pollInterval) * time.Second
	config.PendingTxTimeout = time.Duration(*pendingTimeout) * time.Minute
}
