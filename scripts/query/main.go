package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// --- Main Function ---
func main() {
	// Define command-line flags
	mode := flag.String("mode", "api", "Query mode: 'api' to query via HTTP API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of lc-api.")
	filter := flag.String("q", "", "Filter expression (api mode only).")
	periodName := flag.String("period", "day", "Period for api mode: hour, 12h, day, week, month or year.")
	node := flag.Uint("node", 0, "Node id to restrict the direct query to (optional).")

	defaultEnd := time.Now().UTC().Format(time.RFC3339)
	endTimeStr := flag.String("end", defaultEnd, "End time in RFC3339 format (e.g., 2025-09-12T15:10:00Z).")

	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiAddr, *filter, *periodName, *endTimeStr)
	case "direct":
		directQueryClickHouse(uint32(*node), *endTimeStr)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'direct'.", *mode)
	}
}

// --- API Query Logic ---
func queryViaAPI(apiAddr, filter, periodName, endTime string) {
	params := url.Values{}
	params.Set("period", periodName)
	params.Set("end", endTime)
	if filter != "" {
		params.Add("q", filter)
	}
	apiURL := apiAddr + "/api/v1/stat?" + params.Encode()

	log.Printf("Sending request to %s", apiURL)

	resp, err := http.Get(apiURL)
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(respBody))
	}

	var prettyJSON bytes.Buffer
	err = json.Indent(&prettyJSON, respBody, "", "  ")
	if err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(respBody))
		return
	}

	log.Println("---")
	fmt.Println(prettyJSON.String())
}

// --- Direct ClickHouse Query Logic ---
func directQueryClickHouse(node uint32, endTimeStr string) {
	connOpts := clickhouse.Options{
		Addr: []string{"localhost:9000"},
		Auth: clickhouse.Auth{
			Database: "lightcount",
			Username: "default",
		},
	}

	endTime, err := time.Parse(time.RFC3339, endTimeStr)
	if err != nil {
		log.Fatalf("Invalid end time format: %v", err)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString("\n\t\tSELECT\n\t\t\ts.node_id,\n\t\t\tany(n.node_name) AS NodeName,\n\t\t\tSUM(s.in_bps) AS InBytes,\n\t\t\tSUM(s.out_bps) AS OutBytes,\n\t\t\tuniqExact(s.ip) AS Hosts\n\t\tFROM sample_tbl AS s\n\t\tLEFT JOIN node_tbl AS n ON s.node_id = n.node_id\n")

	var whereClauses []string
	args := []interface{}{}

	whereClauses = append(whereClauses, "s.unixtime >= ?", "s.unixtime < ?")
	args = append(args, endTime.Add(-24*time.Hour).Unix(), endTime.Unix())

	if node != 0 {
		whereClauses = append(whereClauses, "s.node_id = ?")
		args = append(args, node)
	}

	queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	queryBuilder.WriteString("\n\t\tGROUP BY s.node_id\n\t\tORDER BY s.node_id\n")

	conn, err := clickhouse.Open(&connOpts)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer conn.Close()

	log.Println("Successfully connected to ClickHouse.")

	rows, err := conn.Query(context.Background(), queryBuilder.String(), args...)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	defer rows.Close()

	log.Println("--- Per-node totals over the last 24 hours (Direct) ---")

	var foundResult bool
	for rows.Next() {
		foundResult = true
		var (
			nodeID   uint32
			nodeName string
			inBytes  uint64
			outBytes uint64
			hosts    uint64
		)

		if err := rows.Scan(&nodeID, &nodeName, &inBytes, &outBytes, &hosts); err != nil {
			log.Printf("Error scanning row: %v", err)
			continue
		}

		fmt.Printf("Node: %s (%d)\n", nodeName, nodeID)
		fmt.Printf("  InBytes: %d\n", inBytes*300)
		fmt.Printf("  OutBytes: %d\n", outBytes*300)
		fmt.Printf("  Hosts: %d\n", hosts)
		fmt.Println("---------------------")
	}

	if !foundResult {
		log.Println("No data found for the specified criteria.")
	}

	if err := rows.Err(); err != nil {
		log.Printf("An error occurred during row iteration: %v", err)
	}
}
