package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbdoElsaed/ufd/internal/app"
	"github.com/AbdoElsaed/ufd/internal/domain"
	"github.com/AbdoElsaed/ufd/pkg/logger"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "ufd",
		Short: "UFD CLI - download media from social platforms",
		Long:  `A command-line interface for the UFD background daemon: fetch video info and download media using your own browser session cookies.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8750", "Daemon URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start the daemon if not running")

	rootCmd.AddCommand(tabCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}

// ensureServer checks if the daemon is running and starts it if needed
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// connect opens a channel to the daemon
func connect() (*app.ConnectionManager, error) {
	wsURL := strings.Replace(serverURL, "http", "ws", 1) + "/ws"
	cfg := domain.DefaultConfig().Connection

	log, _ := logger.New(logger.Config{Level: "warn", Format: "console", OutputPath: "stderr"})
	conn := app.NewConnectionManager(wsURL, cfg, log)
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// buildRequest resolves and normalizes a URL into a download request
func buildRequest(rawURL string, format, quality string) (*domain.DownloadRequest, error) {
	platform, ok := domain.Resolve(rawURL)
	if !ok {
		return nil, fmt.Errorf("unsupported or invalid URL: %s", rawURL)
	}
	return &domain.DownloadRequest{
		URL:      platform.Normalize(rawURL),
		Platform: platform.ID,
		Format:   domain.Format(format),
		Quality:  domain.Quality(quality),
	}, nil
}

var tabCmd = &cobra.Command{
	Use:   "tab",
	Short: "Show the currently active browser tab",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		conn, err := connect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Disconnect()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, _ := domain.NewMessage(domain.KindGetCurrentTab, nil)
		reply, err := conn.Request(ctx, msg, domain.KindCurrentTab)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var tab domain.TabInfo
		if err := reply.Decode(&tab); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("URL:   %s\n", tab.URL)
		if tab.Title != "" {
			fmt.Printf("Title: %s\n", tab.Title)
		}
		if platform, ok := domain.Resolve(tab.URL); ok {
			fmt.Printf("Platform: %s\n", platform.ID)
		}
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Fetch video information",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format, _ := cmd.Flags().GetString("format")
		quality, _ := cmd.Flags().GetString("quality")

		req, err := buildRequest(args[0], format, quality)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		conn, err := connect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Disconnect()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		msg, _ := domain.NewMessage(domain.KindGetVideoInfo, req)
		reply, err := conn.Request(ctx, msg, domain.KindVideoInfo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var info domain.VideoInfo
		if err := reply.Decode(&info); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Title: %s\n", info.Title)
		if d := info.DurationString(); d != "" {
			fmt.Printf("Duration: %s\n", d)
		}
		if len(info.Formats) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUALITY\tFORMAT\tSIZE")
			for _, f := range info.Formats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.Quality, f.Format, f.Size)
			}
			w.Flush()
		}
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download media from a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		format, _ := cmd.Flags().GetString("format")
		quality, _ := cmd.Flags().GetString("quality")

		req, err := buildRequest(args[0], format, quality)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		conn, err := connect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Disconnect()

		done := make(chan error, 1)
		remove := conn.On(domain.KindDownloadStatus, func(msg domain.ChannelMessage) {
			var status domain.DownloadStatusPayload
			if err := msg.Decode(&status); err != nil {
				return
			}
			switch status.Status {
			case domain.StatusStarting:
				fmt.Println("Starting download...")
			case domain.StatusProgress:
				fmt.Printf("\rDownloading: %.0f%%", status.Progress)
			case domain.StatusCompleted:
				fmt.Printf("\rDownload complete: %s\n", status.Filename)
				done <- nil
			case domain.StatusError:
				fmt.Println()
				done <- fmt.Errorf("%s", status.Error)
			}
		})
		defer remove()

		msg, _ := domain.NewMessage(domain.KindDownloadVideo, req)
		if err := conn.Send(msg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := <-done; err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		conn, err := connect()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Disconnect()

		fmt.Printf("Daemon:  %s\n", serverURL)
		fmt.Printf("State:   %s\n", conn.State())
		fmt.Printf("Backend: %s\n", conn.APIBaseURL())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded download outcomes",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		resp, err := http.Get(serverURL + "/api/v1/history")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var records []map[string]interface{}
		json.Unmarshal(body, &records)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PLATFORM\tSTATUS\tFILENAME\tURL")
		for _, r := range records {
			fmt.Fprintf(w, "%v\t%v\t%v\t%v\n",
				r["platform"], r["status"], r["filename"], truncate(fmt.Sprintf("%v", r["url"]), 50))
		}
		w.Flush()
	},
}

func init() {
	infoCmd.Flags().StringP("format", "f", "video", "Format (video, audio)")
	infoCmd.Flags().StringP("quality", "q", "highest", "Quality (highest, 1080p, 720p, 480p, 360p)")
	downloadCmd.Flags().StringP("format", "f", "video", "Format (video, audio)")
	downloadCmd.Flags().StringP("quality", "q", "highest", "Quality (highest, 1080p, 720p, 480p, 360p)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
