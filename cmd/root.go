package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"streamfetch/internal"
	"streamfetch/stream"
	"streamfetch/utils"
)

var (
	accountID    string
	authEmail    string
	authKey      string
	signingKeyID string
	pemFile      string
	proxyURL     string
	quiet        bool
	debug        bool
	logLevel     string
	logFile      string

	waitUntilReady bool

	pullName      string
	pullSigned    bool
	pullWatermark string

	signLocal bool

	config *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "streamfetch",
	Short:   "Manage Cloudflare Stream videos and resolve signed download links",
	Version: "v1.0.0",
	Long: `Streamfetch is a CLI client for the Cloudflare Stream API. It resolves
signed download URLs for videos, manages signing keys, and wraps the
single-request video endpoints (get, list, delete, pull, usage).

Examples:
  streamfetch download dd5d531a12de0c724bd1275a3b2bc9c6
  streamfetch download --wait dd5d531a12de0c724bd1275a3b2bc9c6
  streamfetch pull --name "My Video" https://example.com/source.mp4
  streamfetch keys create
  streamfetch sign --local dd5d531a12de0c724bd1275a3b2bc9c6

Environment Variables:
  STREAMFETCH_ACCOUNT_ID       Cloudflare account ID
  STREAMFETCH_AUTH_EMAIL       Account email for X-Auth-Email
  STREAMFETCH_AUTH_KEY         Account API key for X-Auth-Key
  STREAMFETCH_SIGNING_KEY_ID   Signing key ID for token minting
  STREAMFETCH_PEM              Signing key PEM (inline)
  STREAMFETCH_PEM_FILE         Path to the signing key PEM
  STREAMFETCH_PROXY            HTTP/SOCKS proxy URL
  STREAMFETCH_TIMEOUT          HTTP timeout in seconds`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogDebug("Configuration loaded: account=%s, timeout=%d, debug=%v, quiet=%v",
			config.AccountID, config.TimeoutSeconds, config.EnableDebug, config.QuietMode)

		return nil
	},
	SilenceUsage: true,
}

var downloadCmd = &cobra.Command{
	Use:   "download <VIDEO_UID>",
	Short: "Resolve a signed download URL for a video",
	Long: `Resolve a signed download URL for a video. A fresh download token is
minted on every call and the URL it produces is valid for 24 hours.

Without --wait the URL is printed immediately, before the download
rendition is confirmed ready; this is the right mode when storing the URL
for later use. With --wait the command polls the download status every 10
seconds for up to 30 attempts and prints the URL once the rendition is
ready.

Examples:
  streamfetch download dd5d531a12de0c724bd1275a3b2bc9c6
  streamfetch download --wait dd5d531a12de0c724bd1275a3b2bc9c6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid := args[0]

		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		resolver := stream.NewResolver(client)
		if waitUntilReady {
			resolver.Progress = utils.NewPackagingProgress(quiet)
		}

		ctx, cancel := signalContext()
		defer cancel()

		internal.LogInfo("Resolving download URL for video %s (wait=%v)", uid, waitUntilReady)
		url, err := resolver.ResolveDownloadURL(ctx, uid, waitUntilReady)
		if err != nil {
			if internal.IsReadinessTimeout(err) {
				return fmt.Errorf("download for %s was not ready in time; retry later or run without --wait", uid)
			}
			return err
		}

		fmt.Println(url)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <VIDEO_UID>",
	Short: "Show a video's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		video, err := client.GetVideo(ctx, args[0])
		if err != nil {
			return err
		}

		return printJSON(video)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		videos, err := client.ListVideos(ctx)
		if err != nil {
			return err
		}

		if quiet {
			for _, v := range videos {
				fmt.Println(v.UID)
			}
			return nil
		}
		return printJSON(videos)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <VIDEO_UID>",
	Short: "Delete a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := client.DeleteVideo(ctx, args[0]); err != nil {
			return err
		}

		if !quiet {
			fmt.Printf("Deleted video %s\n", args[0])
		}
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull <SOURCE_URL>",
	Short: "Ingest a video from a URL",
	Long: `Tell Stream to download and transcode a video from a publicly reachable
URL. The new video's UID is printed; ingestion continues server-side.

Examples:
  streamfetch pull --name "My Video" https://example.com/source.mp4
  streamfetch pull --name "Protected" --signed https://example.com/source.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		video, err := client.PullFromURL(ctx, &internal.PullRequest{
			SourceURL:         args[0],
			Name:              pullName,
			RequireSignedURLs: pullSigned,
			WatermarkUID:      pullWatermark,
		})
		if err != nil {
			return err
		}

		fmt.Println(video.UID)
		return nil
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show storage minutes used and remaining",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		usage, err := client.GetStorageUsage(ctx)
		if err != nil {
			return err
		}

		if quiet {
			fmt.Println(usage.Remaining())
			return nil
		}
		fmt.Printf("Used:      %d minutes\n", usage.TotalStorageMinutes)
		fmt.Printf("Limit:     %d minutes\n", usage.TotalStorageMinutesLimit)
		fmt.Printf("Remaining: %d minutes\n", usage.Remaining())
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a signing key pair",
	Long: `Create a signing key pair for minting download and playback tokens.

The PEM and JWK are printed exactly once. Save them: listings never repeat
key material.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		key, err := client.CreateSigningKey(ctx)
		if err != nil {
			return err
		}

		return printJSON(key)
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signing keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := stream.NewClient(config)
		if err != nil {
			return err
		}
		if err := config.RequireAPIAuth(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		keys, err := client.ListSigningKeys(ctx)
		if err != nil {
			return err
		}

		return printJSON(keys)
	},
}

var signCmd = &cobra.Command{
	Use:   "sign <VIDEO_UID>",
	Short: "Mint a playback token for a signed video",
	Long: `Mint a short-lived playback token for a video that requires signed URLs.
The token replaces the video UID in playback URLs, e.g.
https://iframe.videodelivery.net/<token>.

By default the hosted signing endpoint is used. With --local the token is
signed locally from the configured PEM, with no network round trip.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		var signer internal.TokenSigner
		if signLocal {
			cred, err := config.Credential()
			if err != nil {
				return err
			}
			signer = stream.NewLocalSigner(cred)
		} else {
			client, err := stream.NewClient(config)
			if err != nil {
				return err
			}
			signer = client
		}

		token, err := signer.SignPlaybackToken(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

// loadConfiguration builds the config from the environment and overlays
// the CLI flags that were set
func loadConfiguration() error {
	var err error
	config, err = internal.LoadConfig()
	if err != nil {
		return err
	}

	if accountID != "" {
		config.AccountID = accountID
	}
	if authEmail != "" {
		config.AuthEmail = authEmail
	}
	if authKey != "" {
		config.AuthKey = authKey
	}
	if signingKeyID != "" {
		config.SigningKeyID = signingKeyID
	}
	if pemFile != "" {
		config.PEMFile = pemFile
	}
	if proxyURL != "" {
		config.ProxyURL = proxyURL
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	return config.Validate()
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, so a poll
// loop in flight stops at the next wait
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("Received signal %v, cancelling", sig)
		cancel()
	}()

	return ctx, cancel
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	rootCmd.AddCommand(downloadCmd, getCmd, listCmd, deleteCmd, pullCmd, usageCmd, keysCmd, signCmd)
	keysCmd.AddCommand(keysCreateCmd, keysListCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&accountID, "account", "", "Cloudflare account ID (env: STREAMFETCH_ACCOUNT_ID)")
	pf.StringVar(&authEmail, "auth-email", "", "Account email for X-Auth-Email (env: STREAMFETCH_AUTH_EMAIL)")
	pf.StringVar(&authKey, "auth-key", "", "Account API key for X-Auth-Key (env: STREAMFETCH_AUTH_KEY)")
	pf.StringVar(&signingKeyID, "key-id", "", "Signing key ID for token minting (env: STREAMFETCH_SIGNING_KEY_ID)")
	pf.StringVar(&pemFile, "pem-file", "", "Path to the signing key PEM (env: STREAMFETCH_PEM_FILE)")
	pf.StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: STREAMFETCH_PROXY)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress and informational output")
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information (env: STREAMFETCH_DEBUG)")
	pf.StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: STREAMFETCH_LOG_LEVEL)")
	pf.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: STREAMFETCH_LOG_FILE)")

	downloadCmd.Flags().BoolVarP(&waitUntilReady, "wait", "w", false, "Poll until the download rendition is ready before printing the URL")

	pullCmd.Flags().StringVarP(&pullName, "name", "n", "", "Name to attach to the new video")
	pullCmd.Flags().BoolVar(&pullSigned, "signed", false, "Require signed URLs for the new video")
	pullCmd.Flags().StringVar(&pullWatermark, "watermark", "", "Watermark UID to apply during transcoding")

	signCmd.Flags().BoolVar(&signLocal, "local", false, "Sign the token locally from the configured PEM instead of calling the hosted endpoint")
}

func Execute() error {
	return rootCmd.Execute()
}
