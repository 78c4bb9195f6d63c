package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiyumin/aget/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the aget config file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config (file values merged over built-in defaults)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadOrDefault()
		fmt.Printf("concurrency = %d\n", cfg.Concurrency)
		fmt.Printf("chunk_size = %q\n", cfg.ChunkSize)
		fmt.Printf("timeout = %d\n", cfg.Timeout)
		fmt.Printf("dns_timeout = %d\n", cfg.DNSTimeout)
		fmt.Printf("retries = %d\n", cfg.Retries)
		fmt.Printf("retry_wait = %d\n", cfg.RetryWait)
		for _, h := range cfg.Headers {
			fmt.Printf("header %s: %s\n", h.Name, h.Value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
