package cli

import (
	"context"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/aget/internal/aerrors"
	"github.com/guiyumin/aget/internal/alog"
	"github.com/guiyumin/aget/internal/config"
	"github.com/guiyumin/aget/internal/httpclient"
	"github.com/guiyumin/aget/internal/orchestrator"
	"github.com/guiyumin/aget/internal/sizeparse"
	"github.com/guiyumin/aget/internal/torrentengine"
	"github.com/guiyumin/aget/internal/version"
)

var (
	flagMethod        string
	flagHeaders       []string
	flagData          string
	flagOut           string
	flagConcurrency   int
	flagChunkSize     string
	flagTimeout       int
	flagDNSTimeout    int
	flagRetries       int
	flagRetryWait     int
	flagProxy         string
	flagType          string
	flagInsecure      bool
	flagDebug         bool
	flagQuiet         bool
	flagBTFileRegex   string
	flagBTSeed        bool
	flagBTTrackers    string
	flagBTConnTimeout int
	flagBTRWTimeout   int
	flagBTKeepAlive   int
)

var rootCmd = &cobra.Command{
	Use:     "aget [url]",
	Short:   "Resumable, concurrent downloader for HTTP, HLS and BitTorrent",
	Version: version.Version,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagMethod, "method", "X", "", "HTTP method (GET|POST), default GET, auto-POST if --data is set")
	rootCmd.Flags().StringArrayVarP(&flagHeaders, "header", "H", nil, "request header \"Name: Value\" (repeatable)")
	rootCmd.Flags().StringVarP(&flagData, "data", "d", "", "request body")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "output path, default: decoded final path segment of the URL")
	rootCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "s", 0, "number of concurrent workers")
	rootCmd.Flags().StringVarP(&flagChunkSize, "chunk-size", "k", "", "chunk size, e.g. 500k, 50m")
	rootCmd.Flags().IntVarP(&flagTimeout, "timeout", "t", 0, "per-read idle timeout in seconds")
	rootCmd.Flags().IntVar(&flagDNSTimeout, "dns-timeout", 0, "DNS/dial timeout in seconds")
	rootCmd.Flags().IntVar(&flagRetries, "retries", 0, "number of process-level retry attempts")
	rootCmd.Flags().IntVar(&flagRetryWait, "retry-wait", 0, "seconds to wait between retry attempts")
	rootCmd.Flags().StringVar(&flagProxy, "proxy", "", "proxy URL, default from http_proxy/HTTPS_PROXY/ALL_PROXY")
	rootCmd.Flags().StringVar(&flagType, "type", "auto", "task type: auto|http|m3u8|bt")
	rootCmd.Flags().BoolVar(&flagInsecure, "insecure", false, "skip TLS certificate verification")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "verbose debug logging")
	rootCmd.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress progress output")

	rootCmd.Flags().StringVar(&flagBTFileRegex, "bt-file-regex", "", "select torrent files matching this regex")
	rootCmd.Flags().BoolVar(&flagBTSeed, "seed", false, "keep seeding after the torrent completes")
	rootCmd.Flags().StringVar(&flagBTTrackers, "bt-trackers", "", "comma-separated extra tracker URLs")
	rootCmd.Flags().IntVar(&flagBTConnTimeout, "bt-peer-connect-timeout", 0, "BT peer connect timeout in seconds")
	rootCmd.Flags().IntVar(&flagBTRWTimeout, "bt-peer-read-write-timeout", 0, "BT peer read/write timeout in seconds")
	rootCmd.Flags().IntVar(&flagBTKeepAlive, "bt-peer-keep-alive-interval", 0, "BT peer keep-alive interval in seconds")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func runDownload(ctx context.Context, rawURL string) error {
	cfg := config.LoadOrDefault()

	headers, err := parseHeaders(flagHeaders)
	if err != nil {
		return err
	}
	merged := config.MergeHeaders(cfg, headers, version.Version)

	out := config.ExpandPath(flagOut)
	if out == "" {
		out = defaultOutputName(rawURL)
		if out == "" {
			return aerrors.NewArgument(aerrors.ArgMissingFilename, "could not derive an output filename from %q, pass -o", rawURL)
		}
	}

	if err := validateMethod(flagMethod); err != nil {
		return err
	}
	if err := validateNumericFlags(); err != nil {
		return err
	}
	if err := validateOutputPath(out, orchestrator.DetectType(rawURL, flagType)); err != nil {
		return err
	}

	concurrency := firstNonZeroInt(flagConcurrency, cfg.Concurrency, 10)
	chunkSizeStr := firstNonEmpty(flagChunkSize, cfg.ChunkSize, "500k")
	chunkSize, err := sizeparse.Parse(chunkSizeStr)
	if err != nil {
		return err
	}
	timeout := time.Duration(firstNonZeroInt(flagTimeout, cfg.Timeout, 60)) * time.Second
	dnsTimeout := time.Duration(firstNonZeroInt(flagDNSTimeout, cfg.DNSTimeout, 10)) * time.Second
	retries := firstNonZeroInt(flagRetries, cfg.Retries, 5)
	retryWait := time.Duration(firstNonZeroInt(flagRetryWait, cfg.RetryWait, 0)) * time.Second

	proxy := flagProxy
	if proxy == "" {
		proxy = proxyFromEnv()
	}

	log, err := alog.New(flagDebug, flagQuiet)
	if err != nil {
		return err
	}

	var data []byte
	if flagData != "" {
		data = []byte(flagData)
	}

	opts := orchestrator.Options{
		URL:         rawURL,
		Out:         out,
		Method:      strings.ToUpper(flagMethod),
		Data:        data,
		Headers:     merged,
		Concurrency: concurrency,
		ChunkSize:   chunkSize,
		Timeout:     timeout,
		DNSTimeout:  dnsTimeout,
		Proxy:       proxy,
		Type:        flagType,
		Insecure:    flagInsecure,
		Log:         log,
		BT:          buildBTOptions(out),
	}

	return orchestrator.Drive(ctx, opts, retries, retryWait)
}

// validateMethod rejects a -X/--method value other than GET or POST
// (spec.md §6: "-X/--method (GET|POST, default GET, auto-POST if
// --data)").
func validateMethod(method string) error {
	if method == "" {
		return nil
	}
	switch strings.ToUpper(method) {
	case "GET", "POST":
		return nil
	default:
		return aerrors.NewArgument(aerrors.ArgUnsupportedMethod, "unsupported method %q, want GET or POST", method)
	}
}

// validateNumericFlags rejects negative values for flags where 0 means
// "unset, use the default" (firstNonZeroInt) and any value below 0 is
// nonsensical.
func validateNumericFlags() error {
	named := []struct {
		name  string
		value int
	}{
		{"concurrency", flagConcurrency},
		{"timeout", flagTimeout},
		{"dns-timeout", flagDNSTimeout},
		{"retries", flagRetries},
		{"retry-wait", flagRetryWait},
		{"bt-peer-connect-timeout", flagBTConnTimeout},
		{"bt-peer-read-write-timeout", flagBTRWTimeout},
		{"bt-peer-keep-alive-interval", flagBTKeepAlive},
	}
	for _, n := range named {
		if n.value < 0 {
			return aerrors.NewArgument(aerrors.ArgInvalidNumber, "--%s must not be negative, got %d", n.name, n.value)
		}
	}
	return nil
}

// validateOutputPath checks the resolved output path against what the
// detected task type expects: HTTP/M3U8 write a single file at out, so
// an existing directory there is unusable; BT is handed out as its
// SavePath and treats it as a directory, so an existing plain file
// there is rejected. The torrent engine itself stores downloaded data
// under out+".bt.aget" and does not read SavePath.
func validateOutputPath(out, taskType string) error {
	info, err := os.Stat(out)
	if err != nil {
		return nil
	}
	if taskType == "bt" {
		if !info.IsDir() {
			return aerrors.NewArgument(aerrors.ArgOutputExists, "output path %q already exists as a file, BT downloads need it as a directory", out)
		}
		return nil
	}
	if info.IsDir() {
		return aerrors.NewArgument(aerrors.ArgPathIsDirectory, "output path %q is a directory, want a file path", out)
	}
	return nil
}

func buildBTOptions(out string) torrentengine.AddOptions {
	var trackers []string
	if flagBTTrackers != "" {
		trackers = strings.Split(flagBTTrackers, ",")
	}
	return torrentengine.AddOptions{
		SavePath:              out,
		FileRegex:             flagBTFileRegex,
		Trackers:              trackers,
		Seed:                  flagBTSeed,
		PeerConnectTimeout:    time.Duration(flagBTConnTimeout) * time.Second,
		PeerReadWriteTimeout:  time.Duration(flagBTRWTimeout) * time.Second,
		PeerKeepAliveInterval: time.Duration(flagBTKeepAlive) * time.Second,
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, line := range raw {
		name, value, err := httpclient.ParseHeader(line)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}

func defaultOutputName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return ""
	}
	decoded, err := url.PathUnescape(base)
	if err != nil {
		return base
	}
	return decoded
}

func proxyFromEnv() string {
	for _, key := range []string{"ALL_PROXY", "HTTPS_PROXY", "https_proxy", "http_proxy"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
