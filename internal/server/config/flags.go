package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/flagx"
)

var serverFlags = []string{
	"-a", "-w", "-D", "-d", "-f", "-s", "-t", "-i", "-U",
	"-m", "-o", "-n", "-k", "-F",
	"-u", "-p", "-b", "-g", "-e", "-x",
	"-L", "-v", "-C",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP gateway bind address
//	-D string   storage driver
//	-d string   database DSN
//	-f string   bolt database file
//	-s string   secret key
//	-t int      access token validity, minutes
//	-i int      maximum invite lifetime, minutes
//	-U string   client URL used in invite links
//	-m string   SMTP host
//	-o int      SMTP port
//	-n string   SMTP user
//	-k string   SMTP password
//	-F string   SMTP sender address
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-x string   S3 key prefix
//	-L string   log format (json, zap)
//	-v string   log level
//	-C string   crypto provider (standard, stub)
//
// Duration flags are integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port to run HTTP gateway")
	fs.StringVar(&config.StorageDriver, "D", config.StorageDriver, "storage driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BoltPath, "f", config.BoltPath, "bolt database file")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	inviteTTL := fs.Int("i", int(config.InviteTTL.Minutes()), "invite_ttl (in minutes)")

	fs.StringVar(&config.ClientURL, "U", config.ClientURL, "client URL for invite links")

	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "o", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUser, "n", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "k", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.SMTPFrom, "F", config.SMTPFrom, "SMTP sender")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Prefix, "x", config.S3Prefix, "S3 key prefix")

	fs.StringVar(&config.LogFormat, "L", config.LogFormat, "log format")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.CryptoProvider, "C", config.CryptoProvider, "crypto provider")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.InviteTTL = time.Duration(*inviteTTL) * time.Minute
}
