package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, q url.Values, out any) error {
	u := strings.TrimRight(c.base, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return fmt.Errorf("contact API: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s: %s", e.Error.Type, e.Error.Message)
		}
		return fmt.Errorf("API returned status: %s", resp.Status)
	}
	return json.Unmarshal(body, out)
}

type result struct {
	ID        int64    `json:"id"`
	Timestamp string   `json:"timestamp"`
	PingTime  *float64 `json:"ping_time"`
	Status    string   `json:"status"`
}

func (r result) latency() string {
	if r.PingTime == nil {
		return "-"
	}
	return strconv.FormatFloat(*r.PingTime, 'f', 2, 64) + "ms"
}

func newRootCmd() *cobra.Command {
	c := &client{http: &http.Client{Timeout: 15 * time.Second}}
	var output string

	root := &cobra.Command{
		Use:           "pingmonitor",
		Short:         "Query a running ping monitor",
		SilenceUsage:  true,
	}
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&c.base, "addr", base, "API base URL (env API_BASE)")
	root.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table or json")

	emit := func(v any, table func()) error {
		if strings.EqualFold(output, "json") {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}
		table()
		return nil
	}

	root.AddCommand(newStatusCmd(c, emit), newHistoryCmd(c, emit), newHourlyCmd(c, emit), newOutagesCmd(c, emit))
	return root
}

type emitFunc func(v any, table func()) error

func newStatusCmd(c *client, emit emitFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest probe and the failure streak",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cur map[string]any
			if err := c.get("/api/current-status", nil, &cur); err != nil {
				return err
			}
			var streak struct {
				ConsecutiveFailures int     `json:"consecutive_failures"`
				LastNotification    *string `json:"last_notification"`
			}
			if err := c.get("/api/streak", nil, &streak); err != nil {
				return err
			}
			return emit(map[string]any{"current": cur, "streak": streak}, func() {
				if cur["status"] == "initializing" {
					fmt.Println("Status: initializing (no probe yet)")
				} else {
					pt := "-"
					if v, ok := cur["ping_time"].(float64); ok {
						pt = strconv.FormatFloat(v, 'f', 2, 64) + "ms"
					}
					fmt.Printf("Status: %v | Ping: %s | At: %v\n", cur["status"], pt, cur["timestamp"])
				}
				last := "never"
				if streak.LastNotification != nil {
					last = *streak.LastNotification
				}
				fmt.Printf("Consecutive failures: %d | Last notification: %s\n", streak.ConsecutiveFailures, last)
			})
		},
	}
}

func newHistoryCmd(c *client, emit emitFunc) *cobra.Command {
	var (
		page       int
		limit      string
		start, end string
		status     string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored probe results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("page", strconv.Itoa(page))
			q.Set("limit", limit)
			if start != "" {
				q.Set("startDate", start)
			}
			if end != "" {
				q.Set("endDate", end)
			}
			if status != "" {
				q.Set("status", status)
			}
			var res struct {
				Data       []result `json:"data"`
				Pagination *struct {
					Total int `json:"total"`
					Page  int `json:"page"`
					Limit int `json:"limit"`
					Pages int `json:"pages"`
				} `json:"pagination"`
			}
			if err := c.get("/api/ping-data", q, &res); err != nil {
				return err
			}
			return emit(res, func() {
				fmt.Println("ID\tTimestamp\tPing\tStatus")
				for _, r := range res.Data {
					fmt.Printf("%d\t%s\t%s\t%s\n", r.ID, r.Timestamp, r.latency(), r.Status)
				}
				if p := res.Pagination; p != nil {
					fmt.Printf("page %d/%d, %d rows total\n", p.Page, p.Pages, p.Total)
				}
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().StringVar(&limit, "limit", "100", "Rows per page, or \"all\"")
	cmd.Flags().StringVar(&start, "start", "", "Start time (local \"YYYY-MM-DD HH:mm:ss\" or RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "End time; a bare date covers the whole day")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: success or failed")
	return cmd
}

func newHourlyCmd(c *client, emit emitFunc) *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "hourly",
		Short: "Show hourly latency averages and failure counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Averages []struct {
					Hour    string   `json:"hour"`
					AvgPing *float64 `json:"avg_ping"`
				} `json:"averages"`
				Failures []struct {
					Hour  string `json:"hour"`
					Count int    `json:"count"`
				} `json:"failures"`
			}
			if err := c.get("/api/hourly", url.Values{"hours": {strconv.Itoa(hours)}}, &res); err != nil {
				return err
			}
			failures := make(map[string]int, len(res.Failures))
			for _, f := range res.Failures {
				failures[f.Hour] = f.Count
			}
			return emit(res, func() {
				fmt.Println("Hour\tAvg\tFailures")
				for _, a := range res.Averages {
					avg := "-"
					if a.AvgPing != nil {
						avg = strconv.FormatFloat(*a.AvgPing, 'f', 2, 64) + "ms"
					}
					fmt.Printf("%s\t%s\t%d\n", a.Hour, avg, failures[a.Hour])
				}
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "Window size in hours (1-720)")
	return cmd
}

func newOutagesCmd(c *client, emit emitFunc) *cobra.Command {
	var (
		hours  int
		minDur time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "outages",
		Short: "List runs of consecutive failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("hours", strconv.Itoa(hours))
			q.Set("min", minDur.String())
			q.Set("limit", strconv.Itoa(limit))
			var res struct {
				Outages []struct {
					Start    string  `json:"start"`
					End      string  `json:"end"`
					Duration float64 `json:"duration_seconds"`
					Failures int     `json:"failures"`
					Ongoing  bool    `json:"ongoing"`
				} `json:"outages"`
			}
			if err := c.get("/api/outages", q, &res); err != nil {
				return err
			}
			return emit(res, func() {
				if len(res.Outages) == 0 {
					fmt.Println("No outages.")
					return
				}
				for _, o := range res.Outages {
					end := o.End
					if o.Ongoing {
						end += " (ongoing)"
					}
					fmt.Printf("%s -> %s | %s | %d failures\n", o.Start, end,
						time.Duration(o.Duration*float64(time.Second)).Round(time.Second), o.Failures)
				}
			})
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 24, "Window size in hours (1-720)")
	cmd.Flags().DurationVar(&minDur, "min", 5*time.Minute, "Minimum outage duration")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum outages to list (0 = all)")
	return cmd
}
