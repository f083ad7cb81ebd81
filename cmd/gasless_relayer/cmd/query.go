package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	relayerhttp "github.com/gasless-relayer/gasless-relayer/internal/http"
)

var (
	urlRelayer string
	page       int
	pageSize   int
)

const (
	UrlFlagName      = "url"
	PageFlagName     = "page"
	PageSizeFlagName = "page-size"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a running relayer",
}

func init() {
	QueryCmd.PersistentFlags().StringVarP(&urlRelayer, UrlFlagName, "u", "http://localhost:8080", "server url")
	requestsCmd.Flags().IntVarP(&page, PageFlagName, "p", 1, "page to query, starting at 1")
	requestsCmd.Flags().IntVarP(&pageSize, PageSizeFlagName, "s", 20, "number of requests per page")
	QueryCmd.AddCommand(requestCmd, requestsCmd)
	RootCmd.AddCommand(QueryCmd)
}

// requestCmd represents the request command
var requestCmd = &cobra.Command{
	Use:   "request <request_id>",
	Args:  cobra.ExactArgs(1),
	Short: "Query the state of a relay request",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		record, err := client.GetRequest(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get request: %w", err)
		}

		return printJSON(cmd.OutOrStdout(), "Request", record)
	},
}

// requestsCmd represents the requests command
var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "List relay requests, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		records, err := client.ListRequests(cmd.Context(), page, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}

		return printJSON(cmd.OutOrStdout(), "Requests", records)
	},
}

func newClient(cmd *cobra.Command) (*relayerhttp.RelayerClient, error) {
	url, err := cmd.Flags().GetString(UrlFlagName)
	if err != nil {
		return nil, err
	}

	client, err := relayerhttp.NewRelayerClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to get new relayer client: %w", err)
	}
	return client, nil
}

func printJSON(w io.Writer, title string, v any) error {
	var response bytes.Buffer
	encoder := json.NewEncoder(&response)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	_, err := fmt.Fprintf(w, "%s:\n%s", title, response.String())
	return err
}
